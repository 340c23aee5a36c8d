package wacap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	qrCode "github.com/skip2/go-qrcode"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
)

// handleEvents maps whatsmeow connection events onto registry status updates
// for one session. The registry is the single source of truth for last-known
// state; this handler only reports, it never decides reconnect policy.
func (w *Wacap) handleEvents(sessionID string) func(interface{}) {
	return func(evt interface{}) {
		switch e := evt.(type) {
		case *events.Connected:
			log.Print(nil).Info("Session connected: " + maskSessionID(sessionID))
			update := session.Update{State: session.StateConnected}
			if client := w.client(sessionID); client != nil && client.Store.ID != nil {
				update.Fields = map[string]interface{}{session.FieldPhone: client.Store.ID.User}
			}
			w.registry.RecordStatus(sessionID, update)
		case *events.Disconnected:
			log.Print(nil).Warn("Session disconnected: " + maskSessionID(sessionID))
			w.registry.RecordStatus(sessionID, session.Update{State: session.StateDisconnected})
		case *events.LoggedOut:
			log.Print(nil).Warn("Session logged out: " + maskSessionID(sessionID))
			if client := w.client(sessionID); client != nil {
				client.Disconnect()
			}
			w.dropClient(sessionID)
			w.registry.RemoveStatus(sessionID)
		case *events.StreamReplaced:
			if client := w.client(sessionID); client != nil {
				client.Disconnect()
			}
			w.dropClient(sessionID)
			w.registry.RecordStatus(sessionID, session.Update{
				State:  session.StateError,
				Fields: map[string]interface{}{session.FieldError: "stream replaced by another connection"},
			})
		case *events.ConnectFailure:
			w.registry.RecordStatus(sessionID, session.Update{
				State:  session.StateError,
				Fields: map[string]interface{}{session.FieldError: fmt.Sprintf("connect failure: %s (%s)", e.Reason, e.Message)},
			})
		case *events.KeepAliveTimeout:
			log.Print(nil).Warn(fmt.Sprintf("Session keepalive timeout: %s, errors=%d, lastSuccess=%s",
				maskSessionID(sessionID), e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
		case *events.PairSuccess:
			log.Print(nil).Info("Session paired: " + maskSessionID(sessionID))
			w.registry.RecordStatus(sessionID, session.Update{State: session.StateConnecting})
		}
	}
}

// Login starts QR pairing for a session, creating its client when needed.
// It returns the first QR code as a base64 PNG data URI plus its validity in
// seconds; already-paired sessions are reconnected instead and return an
// empty code. The registry oscillates qr_pending <-> connecting while codes
// rotate, settling on connected once the companion event arrives.
func (w *Wacap) Login(ctx context.Context, sessionID string) (string, int, error) {
	client := w.client(sessionID)
	if client == nil {
		client = w.newClient(nil, sessionID)
	}

	client.Disconnect()

	if client.Store.ID != nil {
		if err := w.Reconnect(sessionID); err != nil {
			return "", 0, err
		}
		return "", 0, nil
	}

	w.registry.RecordStatus(sessionID, session.Update{State: session.StateConnecting})

	qrCtx, cancel := context.WithTimeout(ctx, qrChannelWaitTimeout)
	defer cancel()

	qrChan, err := client.GetQRChannel(qrCtx)
	if err != nil {
		return "", 0, err
	}
	if err := client.Connect(); err != nil {
		w.registry.RecordStatus(sessionID, session.Update{
			State:  session.StateError,
			Fields: map[string]interface{}{session.FieldError: err.Error()},
		})
		return "", 0, err
	}

	image, timeout, paired, err := w.waitForQR(qrCtx, sessionID, qrChan)
	if err != nil {
		w.registry.RecordStatus(sessionID, session.Update{
			State:  session.StateError,
			Fields: map[string]interface{}{session.FieldError: err.Error()},
		})
		return "", 0, err
	}
	if paired {
		return "", 0, nil
	}
	return "data:image/png;base64," + image, timeout, nil
}

// waitForQR consumes the pairing channel until a code, a pairing success or a
// terminal failure arrives. Each code is recorded as qr_pending with the
// rendered QR payload in the status metadata.
func (w *Wacap) waitForQR(ctx context.Context, sessionID string, qrChan <-chan whatsmeow.QRChannelItem) (string, int, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return "", 0, false, ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return "", 0, false, errors.New("whatsapp qr channel closed before delivering a code")
			}
			switch {
			case evt.Event == "code":
				qrPNG, err := qrCode.Encode(evt.Code, qrCode.Medium, 256)
				if err != nil {
					return "", 0, false, err
				}
				encoded := base64.StdEncoding.EncodeToString(qrPNG)
				timeout := int(evt.Timeout.Seconds())
				w.registry.RecordStatus(sessionID, session.Update{
					State: session.StateQRPending,
					Fields: map[string]interface{}{
						session.FieldQR:     encoded,
						session.FieldQRWait: timeout,
					},
				})
				return encoded, timeout, false, nil
			case evt.Event == whatsmeow.QRChannelSuccess.Event:
				return "", 0, true, nil
			case evt.Event == whatsmeow.QRChannelTimeout.Event:
				return "", 0, false, errors.New("whatsapp qr channel timed out")
			case evt.Event == whatsmeow.QRChannelErrUnexpectedEvent.Event:
				return "", 0, false, errors.New("whatsapp qr channel entered an unexpected state")
			case evt.Event == whatsmeow.QRChannelClientOutdated.Event:
				return "", 0, false, errors.New("whatsapp client version is outdated for QR pairing")
			case evt.Event == whatsmeow.QRChannelScannedWithoutMultidevice.Event:
				return "", 0, false, errors.New("whatsapp qr scanned without multi-device enabled")
			case evt.Event == "error":
				if evt.Error != nil {
					return "", 0, false, evt.Error
				}
				return "", 0, false, errors.New("whatsapp qr channel reported an unspecified error")
			}
		}
	}
}
