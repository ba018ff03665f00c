package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arbd/internal/api/handlers"
	"arbd/internal/api/middleware"
	"arbd/internal/models"
	"arbd/internal/state"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Store      *state.Store
	Risk       handlers.RiskReader
	Strategies map[models.StrategyKind]bool
	DryRun     bool

	// Stream - обработчик /ws/stream (websocket.Hub.ServeWS); nil - маршрут не регистрируется
	Stream http.HandlerFunc

	TokenHash      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты
//
// Поверхность только на чтение, мутирующих маршрутов нет:
//
// /api/
//
//	├── GET /status - сводка состояния
//	├── GET /risk - снимок риск-движка
//	├── GET /positions - открытые позиции
//	├── GET /opportunities?limit=N - последние возможности
//	├── GET /trades?limit=N - последние сделки
//	├── GET /market - последние цены
//	└── GET /funding - ставки финансирования
//
// /ws/
//
//	└── /stream - WebSocket поток событий (opportunity, trade, risk)
//
// /health, /metrics - без авторизации
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только /api и /ws)
func SetupRoutes(deps *Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	router := mux.NewRouter()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	auth := middleware.Auth(deps.TokenHash, logger)

	statusHandler := handlers.NewStatusHandler(deps.Risk, deps.Strategies, deps.DryRun)
	stateHandler := handlers.NewStateHandler(deps.Store)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth)

	api.HandleFunc("/status", statusHandler.GetStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/risk", statusHandler.GetRisk).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/positions", stateHandler.GetPositions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/opportunities", stateHandler.GetOpportunities).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trades", stateHandler.GetTrades).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/market", stateHandler.GetMarket).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/funding", stateHandler.GetFunding).Methods(http.MethodGet, http.MethodOptions)

	if deps.Stream != nil {
		router.Handle("/ws/stream", auth(deps.Stream)).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
