package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/console"
	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/timer"
	"github.com/DoyleJ11/derby-console/internal/ws"
)

// SetupRoutes builds the console router. archive may be nil.
func SetupRoutes(c *console.Console, d *derby.Derby, archive *timer.Archive, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(c, log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", Board(c))
		r.Get("/standings", Standings(d))
		r.Get("/standings.xlsx", StandingsXLSX(d, log))
		r.Post("/timer", PostTimer(c))
		r.Get("/timer/lines", TimerLines(archive))
		r.Post("/rewind", Rewind(c))
		r.Post("/round", ScheduleRound(c))
		r.Post("/prepare", Prepare(c))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
