package internal

import "context"

// ShowUnreadDialogs fetches the unread dialogs and dispatches their incoming messages
// like long-poll updates. A failed fetch is logged and yields an empty report.
func ShowUnreadDialogs(ctx context.Context, source DialogSource, contacts *ContactDirectory, router *Router) DispatchReport {
	dialogs, err := source.GetDialogs(ctx, true)
	if err != nil {
		LogWarn("unable to get the dialogs: %v", &RemoteCallError{Method: "messages.getDialogs", Err: err})
		return DispatchReport{}
	}

	if contacts.Len() == 0 {
		LogDebug("no friends in the list")
		return DispatchReport{}
	}

	incoming := make([]ChatMessage, 0, len(dialogs))
	for _, m := range dialogs {
		if m.Outgoing {
			continue
		}
		incoming = append(incoming, m)
	}

	report := router.Route(ctx, contacts, incoming)
	LogDebug("unread dialogs: %d message(s) delivered in %d conversation(s)", report.Delivered, report.Conversations)
	return report
}
