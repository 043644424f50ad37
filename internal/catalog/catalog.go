// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package catalog resolves the set of known missions and each mission's
// remote endpoint and required subfolders from the registry.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/remote"
)

// ErrInvalidMission is returned for names that are empty or not in the
// catalog, and for missions whose configuration cannot be used.
var ErrInvalidMission = errors.New("invalid mission")

const DefaultTTL = 5 * time.Minute

// Mission is the resolved, read-only configuration of one mission.
type Mission struct {
	Name            string
	Endpoint        remote.Endpoint
	RequiredFolders mapset.Set[string]
}

// Root is the remote directory holding the mission's batches.
func (m Mission) Root() string {
	return "/" + m.Name
}

// BatchPath is the remote directory of one batch.
func (m Mission) BatchPath(tag string) string {
	return "/" + m.Name + "/" + tag
}

// Source is the subset of the registry the catalog reads.
type Source interface {
	ListMissionConfigs(ctx context.Context) ([]registry.MissionConfig, error)
	GetMissionConfig(ctx context.Context, mission string) (registry.MissionConfig, error)
}

// Catalog caches mission configuration. The set of known names is replaced
// on every ListMissions call; configs are cached for the TTL.
type Catalog struct {
	src   Source
	cache *ttlcache.Cache[string, Mission]

	mu    sync.RWMutex
	names mapset.Set[string]
}

func New(src Source, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Mission](ttl),
		ttlcache.WithDisableTouchOnHit[string, Mission](),
	)
	go cache.Start()
	return &Catalog{src: src, cache: cache}
}

// Close stops the cache's expiry goroutine.
func (c *Catalog) Close() {
	c.cache.Stop()
}

// ListMissions fetches the names of all configured missions, sorted. It
// starts a new snapshot: configs cached before the call are dropped.
func (c *Catalog) ListMissions(ctx context.Context) ([]string, error) {
	configs, err := c.src.ListMissionConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	names := mapset.NewSetWithSize[string](len(configs))
	for _, cfg := range configs {
		if cfg.SatelliteMission != "" {
			names.Add(cfg.SatelliteMission)
		}
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	c.cache.DeleteAll()

	out := names.ToSlice()
	slices.Sort(out)
	return out, nil
}

// GetConfig resolves a mission. Unknown and empty names fail with
// ErrInvalidMission without contacting the registry for the config.
func (c *Catalog) GetConfig(ctx context.Context, name string) (Mission, error) {
	if name == "" {
		return Mission{}, fmt.Errorf("%w: empty mission name", ErrInvalidMission)
	}
	known, err := c.known(ctx)
	if err != nil {
		return Mission{}, err
	}
	if !known.Contains(name) {
		return Mission{}, fmt.Errorf("%w: %q is not configured", ErrInvalidMission, name)
	}

	var loadErr error
	loader := ttlcache.LoaderFunc[string, Mission](
		func(cache *ttlcache.Cache[string, Mission], key string) *ttlcache.Item[string, Mission] {
			cfg, err := c.src.GetMissionConfig(ctx, key)
			if err != nil {
				loadErr = fmt.Errorf("get mission %s: %w", key, err)
				return nil
			}
			m, err := fromConfig(key, cfg)
			if err != nil {
				loadErr = err
				return nil
			}
			return cache.Set(key, m, ttlcache.DefaultTTL)
		},
	)

	item := c.cache.Get(name, ttlcache.WithLoader[string, Mission](loader))
	if item == nil {
		if loadErr == nil {
			loadErr = fmt.Errorf("get mission %s: no configuration loaded", name)
		}
		return Mission{}, loadErr
	}
	return item.Value(), nil
}

func (c *Catalog) known(ctx context.Context) (mapset.Set[string], error) {
	c.mu.RLock()
	names := c.names
	c.mu.RUnlock()
	if names != nil {
		return names, nil
	}
	if _, err := c.ListMissions(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names, nil
}

// fromConfig keeps the folder names of the role → folder mapping; the roles
// themselves are not needed.
func fromConfig(name string, cfg registry.MissionConfig) (Mission, error) {
	folders := mapset.NewSet[string]()
	for _, folder := range cfg.FolderLocations {
		if folder != "" {
			folders.Add(folder)
		}
	}
	if folders.Cardinality() == 0 {
		return Mission{}, fmt.Errorf("%w: %q has no required folders", ErrInvalidMission, name)
	}
	return Mission{
		Name: name,
		Endpoint: remote.Endpoint{
			Host:     cfg.FTPServer,
			Port:     cfg.FTPPort,
			User:     cfg.FTPUserName,
			Password: cfg.FTPPassword,
		},
		RequiredFolders: folders,
	}, nil
}
