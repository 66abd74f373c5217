package entity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-rako/internal/rako"
)

// Discovery retry policy. The bridge occasionally serves a truncated
// XML document under concurrent requests; light setup retries the whole
// pass, scene setup does not.
const (
	// discoveryAttempts is the total attempt budget for light discovery.
	discoveryAttempts = 3

	// discoveryRetryDelay is the pause before each retry.
	discoveryRetryDelay = 1 * time.Second
)

// SetupLights fetches the bridge's cache snapshot, then discovers all
// lights and wraps them as entities. Discovery is retried up to
// discoveryAttempts times on failure; only the final successful pass's
// entities are kept. Exhausting the budget returns the last error.
func SetupLights(ctx context.Context, bridge *Bridge, session *http.Client) ([]*Light, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	levels, scenes, err := bridge.client.CacheState(cacheCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetching cache snapshot: %w", err)
	}
	bridge.setCaches(levels, scenes)

	var lastErr error
	for attempt := 1; attempt <= discoveryAttempts; attempt++ {
		lights, err := discoverLights(ctx, bridge, session)
		if err == nil {
			bridge.logDebug("light discovery complete",
				"attempt", attempt,
				"lights", len(lights),
			)
			return lights, nil
		}

		lastErr = err
		if attempt == discoveryAttempts {
			break
		}

		bridge.logWarn("light discovery failed, retrying",
			"attempt", attempt,
			"attempts", discoveryAttempts,
			"error", err,
		)
		select {
		case <-time.After(discoveryRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	bridge.logError("light discovery failed",
		"attempts", discoveryAttempts,
		"error", lastErr,
	)
	return nil, fmt.Errorf("light discovery failed after %d attempts: %w", discoveryAttempts, lastErr)
}

// discoverLights performs one full discovery pass. A failure anywhere
// in the stream discards the pass.
func discoverLights(ctx context.Context, bridge *Bridge, session *http.Client) ([]*Light, error) {
	var lights []*Light

	stream := bridge.client.DiscoverLights(ctx, session)
	for stream.Scan() {
		desc := stream.Light()
		switch desc.Kind {
		case rako.KindChannel, rako.KindRoom:
			lights = append(lights, newLight(bridge, desc))
		default:
			// Descriptors of unknown kind are skipped, not errors.
			bridge.logDebug("skipping unrecognised light descriptor", "kind", desc.Kind.String())
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return lights, nil
}

// SetupScenes discovers rooms in a separate single pass (no retry) and
// builds the four fixed preset entities for each room light. Channel
// descriptors carry no scenes of their own and are ignored here.
func SetupScenes(ctx context.Context, bridge *Bridge, session *http.Client) ([]*Scene, error) {
	var scenes []*Scene

	stream := bridge.client.DiscoverLights(ctx, session)
	for stream.Scan() {
		desc := stream.Light()
		if desc.Kind != rako.KindRoom {
			continue
		}
		for _, number := range sceneNumbers {
			scenes = append(scenes, newScene(bridge, desc.RoomID, desc.RoomTitle, number, sceneTable[number]))
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("scene discovery failed: %w", err)
	}
	return scenes, nil
}
