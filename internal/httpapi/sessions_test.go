package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/gobebop/internal/app"
)

func TestSession_DoAndDrain_AbandonedCallKeepsCommands(t *testing.T) {
	_, mgr := newTestServer(t, readyStore())
	sess, err := mgr.Session(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ui/state", nil))
	require.NoError(t, err)

	// hold the loop so the call is still queued when its caller gives up
	release := make(chan struct{})
	_, err = sess.Loop.Post("hold", func() { <-release })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := sess.DoAndDrain(ctx, "ui.list.toggle", (*app.App).ToggleList)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("call did not return after cancel")
	}
	close(release)

	cmds, err := sess.DoAndDrain(context.Background(), "ui.commands", func(*app.App) {})
	require.NoError(t, err)
	assert.NotEmpty(t, ofKind(cmds, app.CmdSetOverlay), "list toggle commands are still delivered")
	assert.NotEmpty(t, ofKind(cmds, app.CmdRenderList))
}

func TestSession_DoAndDrain(t *testing.T) {
	_, mgr := newTestServer(t, readyStore())
	sess, err := mgr.Session(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ui/state", nil))
	require.NoError(t, err)

	cmds, err := sess.DoAndDrain(context.Background(), "ui.list.toggle", (*app.App).ToggleList)
	require.NoError(t, err)
	assert.NotEmpty(t, ofKind(cmds, app.CmdSetOverlay))

	cmds, err = sess.DoAndDrain(context.Background(), "ui.commands", func(*app.App) {})
	require.NoError(t, err)
	assert.Empty(t, cmds)
}
