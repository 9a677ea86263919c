//go:build integration

package notification_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"nidhi/internal/notification"
	"nidhi/pkg/testutil/containers"
)

type RedisMarkerSuite struct {
	suite.Suite
	ctx     context.Context
	redis   *containers.RedisContainer
	markers *notification.RedisMarkerStore
}

func TestRedisMarkerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisMarkerSuite))
}

func (s *RedisMarkerSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.markers = notification.NewRedisMarkerStore(s.redis.Client)
}

func (s *RedisMarkerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisMarkerSuite) TestSetIfAbsent() {
	fresh, err := s.markers.SetIfAbsent(s.ctx, "rel-1", "state/State X")
	s.Require().NoError(err)
	s.True(fresh)

	fresh, err = s.markers.SetIfAbsent(s.ctx, "rel-1", "state/State X")
	s.Require().NoError(err)
	s.False(fresh)

	// Different audience for the same source is a separate marker.
	fresh, err = s.markers.SetIfAbsent(s.ctx, "rel-1", "ministry/Ministry")
	s.Require().NoError(err)
	s.True(fresh)
}

// Many concurrent derivations of the same event: exactly one caller sees a
// fresh marker.
func (s *RedisMarkerSuite) TestSetIfAbsentConcurrent() {
	const goroutines = 50

	var wg sync.WaitGroup
	var freshCount atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := s.markers.SetIfAbsent(s.ctx, "rel-2", "state/State X")
			if err == nil && fresh {
				freshCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), freshCount.Load())
}
