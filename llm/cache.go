package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Cache stores resulting messages under plan fingerprints. Set is
// best-effort: backends log and swallow write failures, and a failed or
// corrupt read is a miss, never an error surfaced to the caller.
type Cache interface {
	Get(key string) (*Message, bool)
	Set(key string, msg *Message)
}

// MemoryCache is a process-lifetime in-memory cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Message
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Message)}
}

// Get implements Cache.Get.
func (c *MemoryCache) Get(key string) (*Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &msg, true
}

// Set implements Cache.Set.
func (c *MemoryCache) Set(key string, msg *Message) {
	if msg == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *msg
}

// cacheSchemaVersion guards the on-disk document layout. Files written with
// another version are treated as a miss.
const cacheSchemaVersion = 1

const cacheFileExt = ".json"

// cacheDocument is the persisted form of a cached message: role, a content
// type tag, the typed content, and an optional passthrough provider marker.
// The provider-native raw payload itself is not persisted, so loaded
// messages carry no Original.
type cacheDocument struct {
	Version          int             `json:"version"`
	Role             Role            `json:"role"`
	Type             string          `json:"type"`
	Text             string          `json:"text,omitempty"`
	FunctionCall     *FunctionCall   `json:"function_call,omitempty"`
	FunctionResponse *FunctionResult `json:"function_response,omitempty"`
	OriginalProvider string          `json:"original_provider,omitempty"`
}

const (
	cacheContentText             = "text"
	cacheContentFunctionCall     = "function_call"
	cacheContentFunctionResponse = "function_response"
)

// DiskCache persists one document per key under a directory. Writes go to a
// temp file followed by an atomic rename so readers never observe a partial
// document.
type DiskCache struct {
	dir    string
	logger zerolog.Logger
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(dir string, logger zerolog.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &DiskCache{
		dir:    dir,
		logger: logger.With().Str("component", "diskCache").Logger(),
	}, nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+cacheFileExt)
}

// Get implements Cache.Get. Missing, unreadable, corrupt or
// version-mismatched files are all reported as a miss.
func (c *DiskCache) Get(key string) (*Message, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		}
		return nil, false
	}

	var doc cacheDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, treating as miss")
		return nil, false
	}
	if doc.Version != cacheSchemaVersion {
		c.logger.Debug().Int("version", doc.Version).Str("key", key).Msg("Cache entry schema mismatch, treating as miss")
		return nil, false
	}

	msg := Message{Role: doc.Role}
	switch doc.Type {
	case cacheContentText:
		msg.Text = doc.Text
	case cacheContentFunctionCall:
		if doc.FunctionCall == nil {
			return nil, false
		}
		msg.Call = doc.FunctionCall
	case cacheContentFunctionResponse:
		if doc.FunctionResponse == nil {
			return nil, false
		}
		msg.Result = doc.FunctionResponse
	default:
		c.logger.Warn().Str("type", doc.Type).Str("key", key).Msg("Unknown cache content type, treating as miss")
		return nil, false
	}
	return &msg, true
}

// Set implements Cache.Set. Failures are logged and swallowed.
func (c *DiskCache) Set(key string, msg *Message) {
	if msg == nil {
		return
	}

	doc := cacheDocument{
		Version: cacheSchemaVersion,
		Role:    msg.Role,
	}
	switch {
	case msg.Call != nil:
		doc.Type = cacheContentFunctionCall
		doc.FunctionCall = msg.Call
	case msg.Result != nil:
		doc.Type = cacheContentFunctionResponse
		doc.FunctionResponse = msg.Result
	default:
		doc.Type = cacheContentText
		doc.Text = msg.Text
	}
	if msg.Original != nil {
		doc.OriginalProvider = msg.Original.Provider
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write skipped, marshal failed")
		return
	}

	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write skipped, temp file failed")
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache rename failed")
		return
	}
}

// CachedRunner wraps an executor with fingerprint-keyed caching.
type CachedRunner struct {
	exec   *Executor
	cache  Cache
	logger zerolog.Logger
}

// NewCachedRunner creates a runner over exec. cache may be nil, in which
// case every run goes to the executor.
func NewCachedRunner(exec *Executor, cache Cache, logger zerolog.Logger) *CachedRunner {
	return &CachedRunner{
		exec:   exec,
		cache:  cache,
		logger: logger.With().Str("component", "cachedRunner").Logger(),
	}
}

// GetOrRun returns the cached message for the plan's fingerprint when
// useCache is set, otherwise executes the plan. A usable resulting message
// is stored under the fingerprint before returning.
func (r *CachedRunner) GetOrRun(ctx context.Context, plan *ExecutionPlan, useCache bool) (*Response, error) {
	var key string
	if useCache && r.cache != nil {
		var err error
		key, err = Fingerprint(plan)
		if err != nil {
			// An unfingerprintable plan still executes; it just cannot be cached.
			r.logger.Warn().Err(err).Msg("Plan fingerprint failed, bypassing cache")
		} else if msg, ok := r.cache.Get(key); ok {
			r.logger.Debug().Str("key", key).Str("request_id", plan.Request.ID).Msg("Cache hit")
			return &Response{RequestID: plan.Request.ID, Message: msg}, nil
		}
	}

	resp, err := r.exec.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	if key != "" && resp.Message != nil {
		r.cache.Set(key, resp.Message)
	}
	return resp, nil
}

// Run executes a plan through the cache. It satisfies the dispatcher's
// RunFunc signature.
func (r *CachedRunner) Run(ctx context.Context, plan *ExecutionPlan) (*Response, error) {
	return r.GetOrRun(ctx, plan, true)
}
