package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"blendcaja/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ventana counts the requests of one client inside a fixed window.
type ventana struct {
	cuenta int
	fin    time.Time
}

// limitador is a fixed-window counter per client IP. Expired windows are
// dropped lazily, at most once per window, from the request path.
type limitador struct {
	limite  int
	periodo time.Duration
	now     func() time.Time

	mu       sync.Mutex
	clientes map[string]*ventana
	purgado  time.Time
}

func newLimitador(limite int, periodo time.Duration) *limitador {
	return &limitador{
		limite:   limite,
		periodo:  periodo,
		now:      time.Now,
		clientes: make(map[string]*ventana),
	}
}

// permitir counts one request for key. When the limit is exceeded it returns
// false and the time left until the window resets.
func (l *limitador) permitir(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.purgado) >= l.periodo {
		l.purgar(now)
	}

	v, ok := l.clientes[key]
	if !ok || !now.Before(v.fin) {
		v = &ventana{fin: now.Add(l.periodo)}
		l.clientes[key] = v
	}
	v.cuenta++
	if v.cuenta > l.limite {
		return false, v.fin.Sub(now)
	}
	return true, 0
}

func (l *limitador) purgar(now time.Time) {
	purgados := 0
	for k, v := range l.clientes {
		if !now.Before(v.fin) {
			delete(l.clientes, k)
			purgados++
		}
	}
	l.purgado = now
	if purgados > 0 {
		log.Debug().
			Int("entries_purged", purgados).
			Int("entries_remaining", len(l.clientes)).
			Msg("rate limiter purged")
	}
}

// RateLimiter allows limit requests per client IP in each window. The till
// polls /caja/estado, so production limits are generous (RATE_LIMIT_PER_MIN).
// limit <= 0 disables the limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := newLimitador(limit, window)
	return func(c *gin.Context) {
		ok, espera := l.permitir(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(espera.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}
