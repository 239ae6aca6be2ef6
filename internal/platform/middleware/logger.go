package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// requestID reads the id stashed by the RequestID middleware; empty
// when that middleware did not run.
func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}

// Logger emits one structured event per request after the handler
// chain returns. Handler errors log at error level with the request
// fields attached.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			var evt *zerolog.Event
			if err != nil {
				evt = logger.Error().Err(err)
			} else {
				evt = logger.Info()
			}
			evt.Str("request_id", requestID(c)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
