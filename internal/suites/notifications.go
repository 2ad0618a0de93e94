package suites

import (
	"context"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

func notificationsSuite() Suite {
	return Suite{
		Name:        "notifications",
		Description: "join notifications and read bookkeeping",
		Tags:        []string{"games"},
		Run:         runNotifications,
	}
}

func runNotifications(ctx context.Context, env *Env) error {
	creator, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}
	opponent, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}

	unreadBefore, ok := unreadCount(ctx, creator.api)
	if !ok {
		return Abort("reading unread count")
	}

	gameID, _, err := openGame(ctx, env, creator)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = creator.api.CancelGame(context.WithoutCancel(ctx), gameID)
	}()

	env.Printer.Step("Opponent joins, creator is notified")
	f := env.Config.Fixtures
	resp, err := opponent.api.JoinGame(ctx, gameID, gemplay.JoinGameRequest{
		Move: gemplay.MovePaper,
		Gems: gemplay.Gems(f.GemType, f.GemQuantity),
	})
	if !env.CheckResponse("opponent joins game", resp, err) {
		return nil
	}

	_, ok = env.WaitFor(ctx, "creator unread count grows after join",
		creator.api.UnreadCount,
		func(r *client.Response) bool {
			n, ok := readUnread(r)
			return ok && n > unreadBefore
		})
	if !ok {
		return nil
	}

	list, err := creator.api.Notifications(ctx, 1, 20)
	if !env.CheckResponse("list notifications", list, err) {
		return nil
	}
	notifID := firstString(list, "$.notifications[0].id", "$[0].id")
	if !env.Check("notification list is not empty", notifID != "", list.Details()) {
		return nil
	}
	env.Check("newest notification is unread", !isRead(list), list.Details())

	env.Printer.Step("Mark one notification read")
	before, _ := unreadCount(ctx, creator.api)
	resp, err = creator.api.MarkRead(ctx, notifID)
	if env.CheckResponse("mark notification as read", resp, err) {
		after, ok := unreadCount(ctx, creator.api)
		env.Checkf("unread count drops by one", ok && after == before-1, "before %d, after %d", before, after)
	}

	env.Printer.Step("Mark all read")
	resp, err = creator.api.MarkAllRead(ctx)
	if env.CheckResponse("mark all notifications as read", resp, err) {
		after, ok := unreadCount(ctx, creator.api)
		env.Checkf("unread count is zero", ok && after == 0, "unread %d", after)
	}
	return nil
}

func unreadCount(ctx context.Context, api *gemplay.API) (int, bool) {
	resp, err := api.UnreadCount(ctx)
	if err != nil || !resp.OK {
		return 0, false
	}
	return readUnread(resp)
}

func readUnread(r *client.Response) (int, bool) {
	for _, p := range []string{"$.unread_count", "$.count"} {
		if n, ok := r.Float(p); ok {
			return int(n), true
		}
	}
	return 0, false
}

func isRead(list *client.Response) bool {
	for _, p := range []string{"$.notifications[0].is_read", "$[0].is_read"} {
		if b, ok := list.Bool(p); ok {
			return b
		}
	}
	return false
}
