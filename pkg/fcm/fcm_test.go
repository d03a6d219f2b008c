package fcm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMulticast(t *testing.T) {
	msg := buildMulticast([]string{"a", "b"}, NotificationData{
		Title: "Email awaiting review",
		Body:  "Welcome to Acme, Jane!",
		Data:  map[string]string{"recordId": "rec-1"},
		Link:  "https://app.example/emails/rec-1",
	})

	require.Equal(t, []string{"a", "b"}, msg.Tokens)
	require.Equal(t, "Email awaiting review", msg.Notification.Title)
	require.Equal(t, "rec-1", msg.Data["recordId"])
	require.Equal(t, "Welcome to Acme, Jane!", msg.Webpush.Notification.Body)
	require.Equal(t, "https://app.example/emails/rec-1", msg.Webpush.FCMOptions.Link)

	require.Nil(t, buildMulticast([]string{"a"}, NotificationData{Title: "x"}).Webpush.FCMOptions)
}
