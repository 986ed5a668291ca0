package web

import (
	"context"
	"net/http"
	"time"

	"github.com/BetterCallFirewall/Phishtrap/internal/broker"
	"github.com/BetterCallFirewall/Phishtrap/internal/config"
	"github.com/BetterCallFirewall/Phishtrap/internal/middlewares"
	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
	"github.com/BetterCallFirewall/Phishtrap/internal/websocket"
)

// VerdictsTopic топик брокера с потоком свежих вердиктов
const VerdictsTopic = "verdicts"

type scorerI interface {
	Score(ctx context.Context, url string) (*scoring.Verdict, error)
}

type storageI interface {
	StoreVerdict(v *scoring.Verdict)
	GetVerdict(id string) (*scoring.Verdict, bool)
	GetAllVerdicts() []*scoring.Verdict
}

type Server struct {
	config  *config.Config
	scorer  scorerI
	storage storageI
	broker  *broker.Broker[*scoring.Verdict]
	server  *http.Server
	hub     *websocket.Hub
}

func NewServer(cfg *config.Config, scorer scorerI, store storageI) *Server {
	hub := websocket.NewHub()
	go hub.Run()

	b := broker.New[*scoring.Verdict](256)

	s := &Server{
		config:  cfg,
		scorer:  scorer,
		storage: store,
		broker:  b,
		hub:     hub,
	}
	go s.pumpVerdicts()

	return s
}

// pumpVerdicts переливает вердикты из брокера в websocket фид
func (s *Server) pumpVerdicts() {
	for v := range s.broker.Subscribe(VerdictsTopic) {
		s.hub.BroadcastVerdict(v)
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.config.Web.ListenAddr,
		Handler:     s.routes(),
		ReadTimeout: 10 * time.Second,
		// скоринг ждёт внешний процесс, поэтому запас больше таймаута экстрактора
		WriteTimeout: s.config.Extractor.Timeout + 30*time.Second,
	}

	return s.server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/v1/scan", s.handleScan)
	mux.HandleFunc("/api/v1/verdicts", s.handleGetVerdicts)
	mux.HandleFunc("/api/v1/verdicts/", s.handleGetVerdict)

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.hub.ServeWS)

	// Health check, формат ответа исторический
	mux.HandleFunc(
		"/api/v1/healthcheck", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":200,"message":"ok"}`))
		},
	)

	return middlewares.CORS(mux)
}

func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	// закрытие топика завершает pumpVerdicts; горутина хаба живёт
	// до конца процесса, но сообщений больше не получает
	s.broker.CloseTopic(VerdictsTopic)
	return nil
}
