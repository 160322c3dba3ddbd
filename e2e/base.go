package e2e

import (
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/infrastructure/ws"
	"chat-realtime/internal/json"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const expectTimeout = 5 * time.Second

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips when no server is targeted
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" || s.Config.JWTSecret == "" {
		s.T().Skip("E2E_SERVER_URL and E2E_JWT_SECRET are required for the end-to-end suite")
	}
	if s.Config.AliceID == 0 || s.Config.BobID == 0 {
		s.T().Skip("E2E_ALICE_ID and E2E_BOB_ID must name registered accounts")
	}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// WithHealth provides a gRPC health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client grpc_health_v1.HealthClient)) {
	t := s.T()
	s.header(t, name)
	conn, err := grpc.NewClient(s.Config.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)
			t.Logf("GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GRPCAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, grpc_health_v1.NewHealthClient(conn))
}

// Peer is one websocket connection opened with a freshly minted token.
type Peer struct {
	suite    *BaseSuite
	Identity domain.Identity
	conn     *websocket.Conn
}

// Connect mints a token for the identity and opens the websocket
func (s *BaseSuite) Connect(name string, identity domain.Identity) *Peer {
	s.header(s.T(), name)
	token, err := auth.GenerateToken(identity, nil, []byte(s.Config.JWTSecret), time.Hour)
	s.Require().NoError(err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(s.Config.ServerURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	s.Require().NoError(err, "Failed to open websocket at "+s.Config.ServerURL)
	return &Peer{suite: s, Identity: identity, conn: conn}
}

func (p *Peer) Send(intent string, payload any) {
	frame := ws.Frame{Event: intent}
	if payload != nil {
		data, err := json.Marshal(payload)
		p.suite.Require().NoError(err)
		frame.Data = data
	}
	raw, err := json.Marshal(frame)
	p.suite.Require().NoError(err)
	p.suite.Require().NoError(p.conn.WriteMessage(websocket.TextMessage, raw))
}

// Expect reads frames until one named name arrives and decodes its data into out.
// Frames of other events are skipped.
func (p *Peer) Expect(name string, out any) {
	deadline := time.Now().Add(expectTimeout)
	var seen []string
	for {
		p.suite.Require().NoError(p.conn.SetReadDeadline(deadline))
		_, raw, err := p.conn.ReadMessage()
		p.suite.Require().NoError(err, "%s waiting for %s, saw [%s]", p.Identity.Username, name, strings.Join(seen, ", "))
		if p.suite.Config.DebugJSON {
			p.suite.T().Logf("%s <- %s", p.Identity.Username, raw)
		}
		var frame ws.Frame
		p.suite.Require().NoError(json.Unmarshal(raw, &frame))
		if frame.Event != name {
			seen = append(seen, frame.Event)
			continue
		}
		if out != nil {
			p.suite.Require().NoError(json.Unmarshal(frame.Data, out))
		}
		return
	}
}

func (p *Peer) Close() {
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.conn.Close()
}
