package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"

	"mtm-hub/src/logger"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// walker keeps one random-walk MTM per user.
type walker struct {
	mu    sync.Mutex
	rng   *rand.Rand
	step  float64
	value map[string]float64
}

func newWalker(seed int64, step float64) *walker {
	return &walker{rng: rand.New(rand.NewSource(seed)), step: step, value: make(map[string]float64)}
}

func (w *walker) next(userID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.value[userID] + (w.rng.Float64()*2-1)*w.step
	w.value[userID] = v
	return v
}

func (w *walker) fails(rate float64) bool {
	if rate <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rng.Float64() < rate
}

// -----------------------------------------------------------------------------

func newRouter(w *walker, doubleEncode bool, failRate float64, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/MTM", func(c *gin.Context) {
		userID := c.Query("UserID")
		if userID == "" {
			c.String(http.StatusBadRequest, "missing UserID")
			return
		}
		if w.fails(failRate) {
			c.String(http.StatusServiceUnavailable, "terminal busy")
			return
		}

		v := w.next(userID)
		body, err := sonic.Marshal(map[string]string{"response": strconv.FormatFloat(v, 'f', 2, 64)})
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		if doubleEncode {
			// The body itself is a JSON string holding the object
			body, _ = sonic.Marshal(string(body))
		}
		log.Debug("%s -> %.2f", userID, v)
		c.Data(http.StatusOK, "application/json", body)
	})
	return r
}

// -----------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", ":8556", "listen address")
	step := flag.Float64("step", 250, "max MTM change per request")
	seed := flag.Int64("seed", 1, "random seed")
	doubleEncode := flag.Bool("double-encode", false, "return the payload as a JSON-encoded string")
	failRate := flag.Float64("fail-rate", 0, "fraction of requests answered with 503")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	log := logger.NewLogger(nil, "Terminal")

	log.Info("Simulated terminal on %s (double-encode=%v)", *addr, *doubleEncode)
	if err := newRouter(newWalker(*seed, *step), *doubleEncode, *failRate, log).Run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
}
