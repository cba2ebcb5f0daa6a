package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readmegen/internal/pipeline"
)

func dialWS(tt *testing.T, baseURL string) *websocket.Conn {
	tt.Helper()
	u := "ws" + strings.TrimPrefix(baseURL, "http") + "/v1/readme/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(tt, err)
	require.Equal(tt, http.StatusSwitchingProtocols, resp.StatusCode)
	tt.Cleanup(func() { _ = conn.Close() })
	require.NoError(tt, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	return conn
}

func readUntilFinal(tt *testing.T, conn *websocket.Conn) ([]readmeWSOutbound, readmeWSOutbound) {
	tt.Helper()
	var progress []readmeWSOutbound
	for {
		var msg readmeWSOutbound
		require.NoError(tt, conn.ReadJSON(&msg))
		if msg.Type == "progress" {
			progress = append(progress, msg)
			continue
		}
		return progress, msg
	}
}

func TestHandleReadmeWS_StreamsProgressThenResult(tt *testing.T) {
	srv := newTestServer(tt, &stubGenerator{reply: "# streamed"}, nil)
	conn := dialWS(tt, srv.URL)

	require.NoError(tt, conn.WriteJSON(map[string]any{
		"mode":  "files",
		"name":  "demo",
		"files": map[string]string{"app.py": "print(1)", "README.md": "old"},
	}))

	progress, final := readUntilFinal(tt, conn)
	require.Equal(tt, "result", final.Type)
	require.NotNil(tt, final.Result)
	assert.Equal(tt, "# streamed", final.Result.Readme)
	assert.Equal(tt, "demo", final.Result.Name)

	var percents []int
	for _, p := range progress {
		percents = append(percents, p.Percent)
	}
	assert.Equal(tt, []int{20, 40, 60, 70, 100}, percents)
	assert.Equal(tt, pipeline.StageGenerate, progress[len(progress)-1].Stage)

	_, _, err := conn.ReadMessage()
	assert.True(tt, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHandleReadmeWS_InvalidURL(tt *testing.T) {
	srv := newTestServer(tt, &stubGenerator{reply: "x"}, nil)
	conn := dialWS(tt, srv.URL)

	require.NoError(tt, conn.WriteJSON(map[string]any{"mode": "github", "url": "not a url"}))
	progress, final := readUntilFinal(tt, conn)
	assert.Empty(tt, progress)
	assert.Equal(tt, "error", final.Type)
	assert.Equal(tt, "invalid_url", final.Code)
	assert.Contains(tt, final.Message, "invalid GitHub URL")
}

func TestHandleReadmeWS_MalformedRequest(tt *testing.T) {
	srv := newTestServer(tt, &stubGenerator{reply: "x"}, nil)
	conn := dialWS(tt, srv.URL)

	require.NoError(tt, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var msg readmeWSOutbound
	require.NoError(tt, conn.ReadJSON(&msg))
	assert.Equal(tt, "error", msg.Type)
	assert.Equal(tt, "bad_request", msg.Code)
}

func TestPushReadmeWS_DropsOldestWhenFull(tt *testing.T) {
	ch := make(chan readmeWSOutbound, 2)
	pushReadmeWS(ch, readmeWSOutbound{Message: "a"})
	pushReadmeWS(ch, readmeWSOutbound{Message: "b"})
	pushReadmeWS(ch, readmeWSOutbound{Message: "c"})
	require.Len(tt, ch, 2)
	assert.Equal(tt, "b", (<-ch).Message)
	assert.Equal(tt, "c", (<-ch).Message)
}
