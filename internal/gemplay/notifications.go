package gemplay

import (
	"context"

	"github.com/gemplay-qa/gemcheck/internal/client"
)

// Notifications calls GET /notifications.
func (a *API) Notifications(ctx context.Context, page, limit int) (*client.Response, error) {
	return a.get(ctx, "/notifications", pageQuery(page, limit))
}

// UnreadCount calls GET /notifications/unread-count.
func (a *API) UnreadCount(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/notifications/unread-count", nil)
}

// MarkRead calls PUT /notifications/{id}/mark-as-read.
func (a *API) MarkRead(ctx context.Context, id string) (*client.Response, error) {
	return a.put(ctx, pathf("/notifications/%s/mark-as-read", id), nil)
}

// MarkAllRead calls PUT /notifications/mark-all-as-read.
func (a *API) MarkAllRead(ctx context.Context) (*client.Response, error) {
	return a.put(ctx, "/notifications/mark-all-as-read", nil)
}
