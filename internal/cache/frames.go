package cache

import (
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// FramesCapacity is the number of generated frames kept.
const FramesCapacity = 4

// GenerateFunc creates the frame for a range.
type GenerateFunc func(start, end time.Time) (*timeseries.Frame, error)

// Frames caches generated frames by range.
type Frames struct {
	cache    *ttlcache.Cache[string, *timeseries.Frame]
	generate GenerateFunc
	sfGroup  *singleflight.Group
}

// NewFrames creates a cache in front of generate.
func NewFrames(ttl time.Duration, generate GenerateFunc) *Frames {
	return &Frames{
		cache: ttlcache.New[string, *timeseries.Frame](
			ttlcache.WithTTL[string, *timeseries.Frame](ttl),
			ttlcache.WithCapacity[string, *timeseries.Frame](FramesCapacity),
		),
		generate: generate,
		sfGroup:  &singleflight.Group{},
	}
}

// Get returns the frame for [start, end], generating it on a miss. Errors
// are not cached.
func (f *Frames) Get(start, end time.Time) (*timeseries.Frame, error) {
	key := fmt.Sprintf("%d-%d", start.UnixNano(), end.UnixNano())
	v, err, _ := f.sfGroup.Do(key, func() (any, error) {
		if item := f.cache.Get(key); item != nil {
			return item.Value(), nil
		}

		frame, err := f.generate(start, end)
		if err != nil {
			return nil, err
		}
		f.cache.Set(key, frame, ttlcache.DefaultTTL)
		return frame, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*timeseries.Frame), nil
}

// Len returns the number of cached frames.
func (f *Frames) Len() int {
	return f.cache.Len()
}
