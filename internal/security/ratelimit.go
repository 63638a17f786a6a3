package security

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Endpoint class names.
const (
	ClassLogin    = "login"
	ClassRegister = "register"
	ClassAuth     = "auth-general"
	ClassAPI      = "api-general"
)

// EndpointClass binds a path prefix to a fixed-window quota. An empty Prefix matches every path.
type EndpointClass struct {
	Name     string
	Prefix   string
	Capacity int
	Window   time.Duration
}

// DefaultEndpointClasses returns the stock table for an API mounted under apiPrefix.
func DefaultEndpointClasses(apiPrefix string) []EndpointClass {
	apiPrefix = strings.TrimRight(apiPrefix, "/")
	return []EndpointClass{
		{Name: ClassLogin, Prefix: apiPrefix + "/auth/login", Capacity: 5, Window: time.Minute},
		{Name: ClassRegister, Prefix: apiPrefix + "/auth/register", Capacity: 3, Window: time.Hour},
		{Name: ClassAuth, Prefix: apiPrefix + "/auth/", Capacity: 10, Window: time.Minute},
		{Name: ClassAPI, Prefix: "", Capacity: 100, Window: time.Minute},
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Class      EndpointClass
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type window struct {
	mu       sync.Mutex
	start    time.Time
	count    int
	lastSeen time.Time
	duration time.Duration
	evicted  bool
}

// RateLimiter admits requests per (client, endpoint class) with fixed-window counters.
// Windows are created lazily and dropped by Sweep once idle for idleWindows window lengths.
type RateLimiter struct {
	classes     []EndpointClass
	fallback    EndpointClass
	idleWindows int

	windows sync.Map // class name + "|" + client key -> *window
	now     func() time.Time
}

// NewRateLimiter validates the class table. Exactly one class must have an empty prefix.
func NewRateLimiter(classes []EndpointClass, idleWindows int) (*RateLimiter, error) {
	if idleWindows <= 0 {
		return nil, errors.New("idle windows must be positive")
	}

	rl := &RateLimiter{idleWindows: idleWindows, now: time.Now}
	seen := make(map[string]struct{}, len(classes))
	hasFallback := false
	for _, class := range classes {
		if class.Name == "" || class.Capacity <= 0 || class.Window <= 0 {
			return nil, fmt.Errorf("endpoint class %q needs a name, positive capacity and window", class.Name)
		}
		if _, dup := seen[class.Name]; dup {
			return nil, fmt.Errorf("duplicate endpoint class %q", class.Name)
		}
		seen[class.Name] = struct{}{}
		if class.Prefix == "" {
			if hasFallback {
				return nil, errors.New("only one endpoint class may have an empty prefix")
			}
			hasFallback = true
			rl.fallback = class
			continue
		}
		rl.classes = append(rl.classes, class)
	}
	if !hasFallback {
		return nil, errors.New("a fallback endpoint class with an empty prefix is required")
	}

	sort.SliceStable(rl.classes, func(i, j int) bool {
		return len(rl.classes[i].Prefix) > len(rl.classes[j].Prefix)
	})
	return rl, nil
}

// Classify returns the class with the longest matching prefix, or the fallback class.
func (rl *RateLimiter) Classify(path string) EndpointClass {
	for _, class := range rl.classes {
		if strings.HasPrefix(path, class.Prefix) {
			return class
		}
	}
	return rl.fallback
}

// TryConsume counts one request for clientKey against class. The window reset and the
// check-and-increment happen under the bucket lock.
func (rl *RateLimiter) TryConsume(clientKey string, class EndpointClass) Decision {
	key := bucketKey(class.Name, clientKey)
	for {
		w := rl.bucket(key, class)
		w.mu.Lock()
		if w.evicted {
			w.mu.Unlock()
			continue
		}

		now := rl.now()
		if now.Sub(w.start) >= class.Window {
			w.start = now
			w.count = 0
		}
		w.lastSeen = now

		allowed := w.count < class.Capacity
		if allowed {
			w.count++
		}
		decision := Decision{
			Allowed:    allowed,
			Class:      class,
			Remaining:  remainingOf(class.Capacity, w.count),
			RetryAfter: w.start.Add(class.Window).Sub(now),
		}
		w.mu.Unlock()
		return decision
	}
}

// Remaining reports the unused quota for clientKey in class without consuming any.
func (rl *RateLimiter) Remaining(clientKey string, class EndpointClass) int {
	v, ok := rl.windows.Load(bucketKey(class.Name, clientKey))
	if !ok {
		return class.Capacity
	}
	w := v.(*window)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.evicted || rl.now().Sub(w.start) >= class.Window {
		return class.Capacity
	}
	return remainingOf(class.Capacity, w.count)
}

// Sweep drops windows idle for at least idleWindows window lengths and returns how many were removed.
func (rl *RateLimiter) Sweep() int {
	now := rl.now()
	removed := 0
	rl.windows.Range(func(key, value interface{}) bool {
		w := value.(*window)
		w.mu.Lock()
		if now.Sub(w.lastSeen) >= time.Duration(rl.idleWindows)*w.duration {
			w.evicted = true
			rl.windows.Delete(key)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// Len counts live windows. It walks the whole registry.
func (rl *RateLimiter) Len() int {
	n := 0
	rl.windows.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (rl *RateLimiter) bucket(key string, class EndpointClass) *window {
	if v, ok := rl.windows.Load(key); ok {
		return v.(*window)
	}
	now := rl.now()
	v, _ := rl.windows.LoadOrStore(key, &window{start: now, lastSeen: now, duration: class.Window})
	return v.(*window)
}

func bucketKey(class, client string) string {
	return class + "|" + client
}

func remainingOf(capacity, count int) int {
	if count >= capacity {
		return 0
	}
	return capacity - count
}
