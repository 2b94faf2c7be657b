package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/Inventario-stock/internal/domain"
)

// NumberingConfig numeración optimista de traslados: max + 1 + jitter, reintentando ante colisión.
type NumberingConfig struct {
	Prefix   string
	Attempts int
	Backoff  time.Duration
}

func (c NumberingConfig) withDefaults() NumberingConfig {
	if c.Prefix == "" {
		c.Prefix = "TRF"
	}
	if c.Attempts < 1 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 50 * time.Millisecond
	}
	return c
}

// YearPrefix prefijo por tenant y año: "TRF-2026-".
func YearPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-", prefix, year)
}

// FormatTransferNumber "TRF-2026-0042". Secuencias de más de 4 dígitos se escriben completas.
func FormatTransferNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s%04d", YearPrefix(prefix, year), seq)
}

// ParseTransferSeq extrae la secuencia de un número con el prefijo del año; false si no corresponde.
func ParseTransferSeq(number, prefix string, year int) (int, bool) {
	rest, ok := strings.CutPrefix(number, YearPrefix(prefix, year))
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextTransferNumber siguiente número a intentar dado el máximo actual ("" si no hay) y un jitter 0-9.
func NextTransferNumber(maxNumber, prefix string, year, jitter int) string {
	seq, _ := ParseTransferSeq(maxNumber, prefix, year)
	return FormatTransferNumber(prefix, year, seq+1+jitter)
}

// defaultJitter reparte números entre creaciones concurrentes.
func defaultJitter() int { return rand.IntN(10) }

// retryOnDuplicate reintenta fn mientras falle con domain.ErrDuplicate o domain.ErrSerialization
// (en PostgreSQL la colisión con otra creación concurrente llega como fallo de serialización),
// hasta attempts veces, esperando backoff*intento entre intentos. Agotados los intentos devuelve Conflict.
func retryOnDuplicate(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		t := time.NewTimer(backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return domain.Conflict("could not allocate a transfer number after %d attempts, retry the operation", attempts)
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrDuplicate) || errors.Is(err, domain.ErrSerialization)
}
