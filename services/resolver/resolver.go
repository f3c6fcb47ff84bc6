package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"github.com/webtor-io/stremio-resolver/models"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/debrid"
	"github.com/webtor-io/stremio-resolver/services/jackett"
	"github.com/webtor-io/stremio-resolver/services/meta"
)

const (
	downloadTTL     = time.Hour
	maxInfoTimeout  = 30 * time.Second
	detachedTimeout = 5 * time.Minute
)

var (
	ErrNoIndexerConfigured = errors.New("no indexer configured")
	ErrNoTorrentInfos      = errors.New("no torrent infos")
	ErrInvalidPasskey      = errors.New("invalid user passkey")
	ErrNoDownloadResolved  = errors.New("no download resolved")
	ErrNoDebrid            = errors.New("no debrid service configured")
)

type Searcher interface {
	Search(ctx context.Context, t jackett.SearchType, q jackett.Query) ([]models.Candidate, error)
	Indexers(ctx context.Context) ([]jackett.Indexer, error)
}

type InfoResolver interface {
	Get(ctx context.Context, c *models.Candidate) (*models.TorrentInfo, error)
	GetByID(ctx context.Context, id string) (*models.TorrentInfo, error)
	TorrentFile(ctx context.Context, ti *models.TorrentInfo) ([]byte, error)
}

type ProviderFactory interface {
	New(id string, o debrid.Options) (debrid.Provider, error)
}

type Resolver struct {
	cfg       *Config
	searcher  Searcher
	infos     InfoResolver
	meta      meta.Resolver
	providers ProviderFactory
	cache     cache.Cache
	signer    *Signer
	searches  *locks
	downloads *locks
	detached  conc.WaitGroup
}

func New(cfg *Config, se Searcher, ir InfoResolver, mr meta.Resolver, pf ProviderFactory, ch cache.Cache, sg *Signer) *Resolver {
	return &Resolver{
		cfg:       cfg,
		searcher:  se,
		infos:     ir,
		meta:      mr,
		providers: pf,
		cache:     ch,
		signer:    sg,
		searches:  newLocks("search"),
		downloads: newLocks("download"),
	}
}

func (s *Resolver) Config() *Config {
	return s.cfg
}

// Wait blocks until detached next episode tasks are done.
func (s *Resolver) Wait() {
	s.detached.Wait()
}

func (s *Resolver) userConfig(in models.UserConfigInput) (*models.UserConfig, error) {
	return models.MergeUserConfig(s.cfg.Defaults, in, s.cfg.ImmutableKeys)
}

func (s *Resolver) provider(cfg *models.UserConfig) (debrid.Provider, error) {
	return s.providers.New(cfg.DebridID, debrid.Options{
		APIKey: cfg.DebridAPIKey,
		IP:     cfg.IP,
	})
}

// ListStreams searches, ranks and checks availability of torrents for a
// movie or an episode.
func (s *Resolver) ListStreams(ctx context.Context, in models.UserConfigInput, contentType string, stremioID string, publicURL string) ([]models.StreamEntry, error) {
	cfg, err := s.userConfig(in)
	if err != nil {
		return nil, err
	}
	req, err := models.ParseMediaRequest(contentType, stremioID)
	if err != nil {
		return nil, err
	}
	p, err := s.provider(cfg)
	if err != nil {
		return nil, err
	}
	l := log.WithFields(log.Fields{
		"request_id": uuid.NewV4().String(),
		"stremio_id": stremioID,
	})
	m, err := meta.Get(ctx, s.meta, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get meta")
	}
	ts, err := s.getTorrents(ctx, l, cfg, m, req, p)
	if err != nil {
		return nil, err
	}
	if req.IsSeries() {
		next := *cfg
		next.ForceCacheNextEpisode = false
		s.detach(func(ctx context.Context) {
			s.prepareNextEpisode(ctx, l, &next, m, req, p)
		})
	}
	encoded, err := in.Encode()
	if err != nil {
		return nil, err
	}
	res := make([]models.StreamEntry, 0, len(ts))
	for _, t := range ts {
		e, err := s.streamEntry(t, req, p, func(t *torrent) (string, error) {
			ref, err := s.signer.Sign(&Reference{
				Config:    encoded,
				Type:      contentType,
				StremioID: stremioID,
				TorrentID: t.ID,
			})
			if err != nil {
				return "", err
			}
			return publicURL + "/download/" + ref, nil
		})
		if err != nil {
			return nil, err
		}
		res = append(res, *e)
	}
	return res, nil
}

func (s *Resolver) selectIndexers(ctx context.Context, cfg *models.UserConfig, series bool) ([]jackett.Indexer, error) {
	all, err := s.searcher.Indexers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get indexers")
	}
	var available, wanted []jackett.Indexer
	for _, i := range all {
		if !i.Supports(series) {
			continue
		}
		available = append(available, i)
		if cfg.WantsIndexer(i.ID) {
			wanted = append(wanted, i)
		}
	}
	switch {
	case len(wanted) > 0:
		return wanted, nil
	case len(available) > 0:
		log.WithField("indexers", cfg.Indexers).Info("user indexers not available, falling back to type capable indexers")
		return available, nil
	case len(all) > 0:
		log.WithField("indexers", cfg.Indexers).Info("no type capable indexer, falling back to all indexers")
		return all, nil
	default:
		return nil, ErrNoIndexerConfigured
	}
}

// withTimeout returns ctx.Err() as soon as ctx ends even when f ignores it.
func withTimeout[T any](ctx context.Context, d time.Duration, f func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := f(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// searchAll queries every indexer in parallel, failed indexers contribute
// nothing. Results keep the indexer order.
func (s *Resolver) searchAll(ctx context.Context, l *log.Entry, indexers []jackett.Indexer, t jackett.SearchType, q jackett.Query, timeout time.Duration) []models.Candidate {
	results := make([][]models.Candidate, len(indexers))
	var wg conc.WaitGroup
	for i, idx := range indexers {
		wg.Go(func() {
			iq := q
			iq.Indexer = idx.ID
			res, err := withTimeout(ctx, timeout, func(ctx context.Context) ([]models.Candidate, error) {
				return s.searcher.Search(ctx, t, iq)
			})
			if err != nil {
				l.WithError(err).WithFields(log.Fields{
					"indexer": idx.ID,
					"type":    t,
				}).Warn("indexer search failed")
				return
			}
			results[i] = res
		})
	}
	wg.Wait()
	var res []models.Candidate
	for _, r := range results {
		res = append(res, r...)
	}
	return res
}

func toTorrents(cs []models.Candidate, cfg *models.UserConfig, pack bool) []*torrent {
	var res []*torrent
	for _, c := range cs {
		if !acceptable(cfg, &c) {
			continue
		}
		res = append(res, &torrent{Candidate: c, pack: pack})
	}
	return res
}

func (s *Resolver) getTorrents(ctx context.Context, l *log.Entry, cfg *models.UserConfig, m *meta.Meta, req *models.MediaRequest, p debrid.Provider) ([]*torrent, error) {
	release, err := s.searches.acquire(ctx, req.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	timeout := time.Duration(cfg.IndexerTimeoutSec) * time.Second
	indexers, err := s.selectIndexers(ctx, cfg, req.IsSeries())
	if err != nil {
		return nil, err
	}
	q := jackett.Query{
		Name:    m.Name,
		Year:    m.Year,
		Season:  req.Season,
		Episode: req.Episode,
	}
	byDesc := []models.SortKey{{Field: models.SortFieldSeeders, Desc: true}}
	langs := languageFilter(cfg)

	var ts []*torrent
	if req.IsSeries() {
		var episodes, series []models.Candidate
		var wg conc.WaitGroup
		wg.Go(func() {
			episodes = s.searchAll(ctx, l, indexers, jackett.SearchTypeEpisode, q, timeout)
		})
		wg.Go(func() {
			series = s.searchAll(ctx, l, indexers, jackett.SearchTypeSeries, q, timeout)
		})
		wg.Wait()
		var packs []*torrent
		for _, t := range toTorrents(series, cfg, true) {
			if isSeasonPack(t.Name, req.Season) {
				packs = append(packs, t)
			}
		}
		ts = append(toTorrents(episodes, cfg, false), packs...)
		l.WithFields(log.Fields{
			"count":    len(ts),
			"duration": time.Since(start),
		}).Info("torrents found")
		sortTorrents(ts, byDesc)
		ts = prioritize(ts, langs, languageCap(cfg.MaxTorrents))
		ts = truncate(ts, cfg.MaxTorrents+2)
		ts = forcePacks(ts, packs, cfg.PriotizePackTorrents)
	} else {
		ts = toTorrents(s.searchAll(ctx, l, indexers, jackett.SearchTypeMovie, q, timeout), cfg, false)
		l.WithFields(log.Fields{
			"count":    len(ts),
			"duration": time.Since(start),
		}).Info("torrents found")
		sortTorrents(ts, byDesc)
		ts = prioritize(ts, langs, languageCap(cfg.MaxTorrents))
		ts = truncate(ts, cfg.MaxTorrents+2)
	}

	ts = s.resolveInfos(ctx, l, ts, timeout)
	ts = truncate(ts, cfg.MaxTorrents)
	if len(ts) == 0 {
		return nil, errors.Wrapf(ErrNoTorrentInfos, "type %v and id %v", req.Type, req.Key())
	}
	if p == nil {
		return ts, nil
	}
	return s.checkDebrid(ctx, l, cfg, req, ts, p), nil
}

func truncate(ts []*torrent, n int) []*torrent {
	if n >= 0 && len(ts) > n {
		return ts[:n]
	}
	return ts
}

// resolveInfos attaches torrent infos with bounded concurrency, drops
// failures and keeps the first torrent of every info hash.
func (s *Resolver) resolveInfos(ctx context.Context, l *log.Entry, ts []*torrent, indexerTimeout time.Duration) []*torrent {
	timeout := maxInfoTimeout
	if indexerTimeout < timeout {
		timeout = indexerTimeout
	}
	start := time.Now()
	p := pool.New().WithMaxGoroutines(s.cfg.InfoConcurrency)
	for _, t := range ts {
		p.Go(func() {
			ti, err := withTimeout(ctx, timeout, func(ctx context.Context) (*models.TorrentInfo, error) {
				return s.infos.Get(ctx, &t.Candidate)
			})
			if err != nil {
				l.WithError(err).WithFields(log.Fields{
					"torrent_id": t.ID,
					"indexer":    t.IndexerID,
					"link":       common.RedactURL(t.Link),
				}).Warn("failed to get torrent infos")
				return
			}
			t.info = ti
		})
	}
	p.Wait()
	seen := map[string]struct{}{}
	var res []*torrent
	for _, t := range ts {
		if t.info == nil {
			continue
		}
		if _, ok := seen[t.info.InfoHash]; ok {
			continue
		}
		seen[t.info.InfoHash] = struct{}{}
		res = append(res, t)
	}
	l.WithFields(log.Fields{
		"count":    len(res),
		"duration": time.Since(start),
	}).Info("torrent infos found")
	return res
}

func disabledText(err error) string {
	switch debrid.KindOf(err) {
	case debrid.KindExpiredAPIKey:
		return "Unable to verify cache (+): Expired Debrid API Key."
	case debrid.KindNotPremium:
		return "Unable to verify cache (+): Debrid account is not premium."
	case debrid.KindAccessDenied:
		return "Unable to verify cache (+): Debrid access denied."
	case debrid.KindTwoFactorAuth:
		return "Unable to verify cache (+): Debrid two factor authentication required."
	default:
		return "Unable to verify cache (+): Debrid service error."
	}
}

func (s *Resolver) checkDebrid(ctx context.Context, l *log.Entry, cfg *models.UserConfig, req *models.MediaRequest, ts []*torrent, p debrid.Provider) []*torrent {
	infos := make([]*models.TorrentInfo, 0, len(ts))
	for _, t := range ts {
		infos = append(infos, t.info)
	}
	pm := p.Meta()
	cachedInfos, err := p.GetTorrentsCached(ctx, infos, episodePredicate(req))
	if err != nil {
		l.WithError(err).WithField("debrid", pm.ShortName).Warn("failed to check debrid cache")
		text := disabledText(err)
		for _, t := range ts {
			t.disabled = true
			t.infoText = text
		}
		return ts
	}
	isCached := make(map[*models.TorrentInfo]bool, len(cachedInfos))
	for _, ti := range cachedInfos {
		isCached[ti] = true
	}
	needsPasskey := s.cfg.ReplacePasskey != nil && !s.cfg.ValidPasskey(cfg.Passkey)
	var cached, uncached []*torrent
	for _, t := range ts {
		if isCached[t.info] {
			t.cached = true
			cached = append(cached, t)
			continue
		}
		if needsPasskey && t.info.Private {
			t.disabled = true
			t.infoText = "Uncached torrent require a passkey configuration"
		}
		uncached = append(uncached, t)
	}
	l.WithFields(log.Fields{
		"debrid": pm.ShortName,
		"cached": len(cached),
	}).Info("debrid cache checked")
	langs := languageFilter(cfg)
	sortTorrents(cached, cfg.SortCached)
	sortTorrents(uncached, cfg.SortUncached)
	res := append(prioritize(cached, langs, 0), prioritize(uncached, langs, 0)...)

	progress, err := p.GetProgressTorrents(ctx, infos)
	if err != nil {
		l.WithError(err).WithField("debrid", pm.ShortName).Warn("failed to get debrid progress")
		return res
	}
	for _, t := range res {
		if pr, ok := progress[t.info.InfoHash]; ok {
			t.progress = &pr
		}
	}
	return res
}

// detach runs f outside of the calling request, outcomes are only logged.
func (s *Resolver) detach(f func(ctx context.Context)) {
	s.detached.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("detached task panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), detachedTimeout)
		defer cancel()
		f(ctx)
	})
}

// prepareNextEpisode warms the search of the following episode and, when
// asked to, starts caching its best torrent on the debrid side.
func (s *Resolver) prepareNextEpisode(ctx context.Context, l *log.Entry, cfg *models.UserConfig, m *meta.Meta, req *models.MediaRequest, p debrid.Provider) {
	ne := m.NextEpisode()
	if ne == nil {
		return
	}
	nreq := req.WithEpisode(ne.Season, ne.Episode)
	l = l.WithField("next_episode", nreq.Key())
	nm, err := s.meta.GetEpisodeByID(ctx, nreq.ID, nreq.Season, nreq.Episode)
	if err != nil {
		l.WithError(err).Warn("failed to get next episode meta")
		return
	}
	ts, err := s.getTorrents(ctx, l, cfg, nm, nreq, p)
	if err != nil {
		l.WithError(err).Warn("failed to get next episode torrents")
		return
	}
	if !cfg.ForceCacheNextEpisode || p == nil || len(ts) == 0 {
		return
	}
	for _, t := range ts {
		if t.cached {
			return
		}
	}
	for _, t := range ts {
		if t.disabled {
			continue
		}
		l.WithField("torrent_id", t.ID).Info("force caching next episode on debrid")
		if _, err := s.debridFiles(ctx, cfg, t.info, p); err != nil && debrid.KindOf(err) != debrid.KindNotReady {
			l.WithError(err).Warn("failed to cache next episode")
		}
		return
	}
}

func (s *Resolver) debridFiles(ctx context.Context, cfg *models.UserConfig, ti *models.TorrentInfo, p debrid.Provider) ([]debrid.File, error) {
	if ti.MagnetURL != "" {
		return p.GetFilesFromMagnet(ctx, ti.MagnetURL, ti.InfoHash)
	}
	b, err := s.infos.TorrentFile(ctx, ti)
	if err != nil {
		return nil, err
	}
	if s.cfg.ReplacePasskey != nil && ti.Private {
		if cfg.Passkey == "" {
			return p.GetFilesFromHash(ctx, ti.InfoHash)
		}
		if !s.cfg.ValidPasskey(cfg.Passkey) {
			return nil, errors.Wrapf(ErrInvalidPasskey, "pattern %v not matched", s.cfg.PasskeyPattern)
		}
		b, err = ReplacePasskey(b, s.cfg.ReplacePasskey, cfg.Passkey)
		if err != nil {
			return nil, err
		}
	}
	return p.GetFilesFromBuffer(ctx, b, ti.InfoHash)
}

func downloadKey(userHash string, req *models.MediaRequest, torrentID string) string {
	return fmt.Sprintf("download:2:%v:%v:%v", userHash, req.Key(), torrentID)
}

// ResolveDownload returns the direct url of the best file of a torrent.
func (s *Resolver) ResolveDownload(ctx context.Context, in models.UserConfigInput, contentType string, stremioID string, torrentID string) (string, error) {
	cfg, err := s.userConfig(in)
	if err != nil {
		return "", err
	}
	req, err := models.ParseMediaRequest(contentType, stremioID)
	if err != nil {
		return "", err
	}
	p, err := s.provider(cfg)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", ErrNoDebrid
	}
	key := downloadKey(p.GetUserHash(), req, torrentID)
	release, err := s.downloads.acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer release()

	l := log.WithFields(log.Fields{
		"stremio_id": stremioID,
		"torrent_id": torrentID,
		"debrid":     p.Meta().ShortName,
	})

	if req.IsSeries() && cfg.ForceCacheNextEpisode {
		nl := l
		s.detach(func(ctx context.Context) {
			m, err := meta.Get(ctx, s.meta, req)
			if err != nil {
				nl.WithError(err).Warn("failed to get meta for next episode")
				return
			}
			s.prepareNextEpisode(ctx, nl, cfg, m, req, p)
		})
	}

	var cached string
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		l.WithError(err).Warn("failed to read download cache")
	} else if ok && cached != "" {
		l.Debug("download cache hit")
		return cached, nil
	}

	ti, err := s.infos.GetByID(ctx, torrentID)
	if err != nil {
		return "", err
	}
	fl := l.WithField("info_hash", ti.InfoHash)
	files, err := s.debridFiles(ctx, cfg, ti, p)
	if err != nil {
		return "", err
	}
	fl.WithField("count", len(files)).Info("debrid files found")
	if len(files) == 0 {
		return "", ErrNoDownloadResolved
	}
	debrid.SortBySize(files)
	best := files[0]
	if req.IsSeries() {
		if i := searchEpisodeFile(files, debridFileName, req.Season, req.Episode); i >= 0 {
			best = files[i]
		}
	}
	u, err := p.GetDownload(ctx, best)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "", errors.Wrapf(ErrNoDownloadResolved, "type %v and id %v", req.Type, torrentID)
	}
	if err := s.cache.Set(ctx, key, u, downloadTTL); err != nil {
		fl.WithError(err).Warn("failed to write download cache")
	}
	fl.WithField("file", best.Name).Info("download resolved")
	return u, nil
}
