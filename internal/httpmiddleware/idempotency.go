package httpmiddleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

const (
	maxIdempotencyKey = 255
	pendingMarker     = "pending"
)

var errInFlight = errors.New("idempotent request still in flight")

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays stored 2xx responses for POST requests that repeat an Idempotency-Key.
// The first request reserves the key; repeats that arrive while it runs wait for its response.
type Idempotency struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
	wait       time.Duration
	poll       time.Duration
	prefix     string
	log        *zap.Logger
}

// NewIdempotency creates the middleware. Responses are kept for ttl.
func NewIdempotency(client *redis.Client, ttl time.Duration, log *zap.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{
		client:     client,
		ttl:        ttl,
		pendingTTL: 30 * time.Second,
		wait:       5 * time.Second,
		poll:       25 * time.Millisecond,
		prefix:     "hrms:idempotency:",
		log:        log,
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// GinMiddleware returns the gin handler.
func (i *Idempotency) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKey {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Idempotency-Key must be at most 255 characters."})
			return
		}

		ctx := c.Request.Context()
		cacheKey := i.prefix + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		cached, err := i.reserve(ctx, cacheKey)
		switch {
		case errors.Is(err, errInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "message": "A request with this Idempotency-Key is still being processed."})
			return
		case err != nil:
			i.log.Error("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		case cached != nil:
			i.log.Info("replaying idempotent response", zap.String("key", key))
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		stored := false
		defer func() {
			if stored {
				return
			}
			// free the reservation so a retry runs the handler again
			if err := i.client.Del(context.WithoutCancel(ctx), cacheKey).Err(); err != nil {
				i.log.Error("release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}()

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		data, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			i.log.Error("encode response for replay", zap.Error(err))
			return
		}
		if err := i.client.Set(ctx, cacheKey, data, i.ttl).Err(); err != nil {
			i.log.Error("store idempotent response", zap.String("key", key), zap.Error(err))
			return
		}
		stored = true
	}
}

// reserve claims cacheKey for the caller and returns nil, nil when it did. When
// an earlier request already finished it returns that response; while one is
// still running it polls until the response lands or the wait runs out.
func (i *Idempotency) reserve(ctx context.Context, cacheKey string) (*cachedResponse, error) {
	deadline := time.Now().Add(i.wait)
	for {
		ok, err := i.client.SetNX(ctx, cacheKey, pendingMarker, i.pendingTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}

		raw, err := i.client.Get(ctx, cacheKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return nil, err
		case string(raw) != pendingMarker:
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err != nil {
				return nil, fmt.Errorf("decode cached response: %w", err)
			}
			return &cached, nil
		}

		if time.Now().After(deadline) {
			return nil, errInFlight
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(i.poll):
		}
	}
}
