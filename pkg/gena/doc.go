// Package gena implements the client side of UPnP General Event Notification
// Architecture subscriptions.
//
// A controller subscribes by sending the SUBSCRIBE verb to a device's event
// URL with the callback URL it wants notifications delivered to:
//
//	SUBSCRIBE /MediaRenderer/AVTransport/Event HTTP/1.1
//	Host: 192.168.1.20:1400
//	Callback: <http://192.168.1.10:8080>
//	NT: upnp:event
//
// The device answers with a SID identifying the subscription and a TIMEOUT
// after which it lapses. Renew re-sends SUBSCRIBE with only the SID, and
// Unsubscribe sends UNSUBSCRIBE with the SID.
//
// Failures are never retried by the client. A non-2xx answer or a transport
// error is returned as *SubscriptionError, which also matches
// ErrSubscriptionFailed.
package gena
