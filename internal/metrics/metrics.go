package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vocabulary and label shapes are carried over from original_source/metrics.py
// so existing dashboards and alert rules keep working against this port.
var (
	ServiceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_info",
			Help: "Navaar service build info",
		},
		[]string{"version", "ytmusic_playlist_id"},
	)

	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_sync_cycles_total",
			Help: "Total sync cycles executed",
		},
		[]string{"direction"},
	)
	TracksDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_tracks_discovered_total",
			Help: "Total tracks discovered",
		},
		[]string{"direction"},
	)
	TracksSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_tracks_synced_total",
			Help: "Total tracks successfully synced",
		},
		[]string{"direction"},
	)
	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_duplicates_skipped_total",
			Help: "Total duplicate tracks skipped",
		},
		[]string{"direction"},
	)
	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_sync_errors_total",
			Help: "Total sync errors",
		},
		[]string{"direction", "error_type"},
	)
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_retries_total",
			Help: "Total retry attempts",
		},
		[]string{"direction"},
	)
	IdentificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_identification_total",
			Help: "Total track identifications by method",
		},
		[]string{"method"},
	)
	YtSearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_yt_search_total",
			Help: "YouTube Music search results",
		},
		[]string{"result"},
	)
	SpSearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_sp_search_total",
			Help: "Spotify search results",
		},
		[]string{"result"},
	)
	TgUploadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_tg_upload_total",
			Help: "Telegram upload results",
		},
		[]string{"result"},
	)
	DownloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navaar_download_total",
			Help: "Audio download results, by source endpoint (yt)",
		},
		[]string{"source", "result"},
	)

	TracksTotalGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navaar_tracks_total",
			Help: "Total tracks in database",
		},
	)
	TracksPendingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_tracks_pending",
			Help: "Currently pending tracks",
		},
		[]string{"direction"},
	)
	TracksFailedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_tracks_failed",
			Help: "Currently failed tracks",
		},
		[]string{"direction"},
	)
	TracksSyncedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_tracks_synced_current",
			Help: "Current synced tracks count",
		},
		[]string{"direction"},
	)
	TracksDuplicateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_tracks_duplicate",
			Help: "Current duplicate tracks count",
		},
		[]string{"direction"},
	)
	LastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_last_sync_timestamp_seconds",
			Help: "Timestamp of last completed sync cycle",
		},
		[]string{"direction"},
	)
	LastSyncDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_last_sync_duration_seconds",
			Help: "Duration of the most recent sync cycle",
		},
		[]string{"direction"},
	)
	LastSyncProcessed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navaar_last_sync_processed_tracks",
			Help: "Number of tracks processed in last sync cycle",
		},
		[]string{"direction"},
	)
	Up = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navaar_up",
			Help: "Whether the service is up",
		},
	)
	UptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navaar_uptime_seconds",
			Help: "Service uptime in seconds",
		},
	)
	SuccessRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navaar_success_rate_percent",
			Help: "Overall sync success rate",
		},
	)

	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navaar_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"direction"},
	)
	TrackSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navaar_track_sync_duration_seconds",
			Help:    "Duration of an individual track's sync",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"direction"},
	)
	YtSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navaar_yt_search_duration_seconds",
			Help:    "Duration of YouTube Music searches",
			Buckets: []float64{0.5, 1, 2, 5, 10},
		},
	)
	SpSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navaar_sp_search_duration_seconds",
			Help:    "Duration of Spotify searches",
			Buckets: []float64{0.5, 1, 2, 5, 10},
		},
	)
)

// Init pre-registers every direction/error_type/method/result label
// combination so they appear in /metrics from startup, mirroring
// original_source/metrics.py: init_metrics.
func Init(version, ytPlaylistID string) {
	ServiceInfo.WithLabelValues(version, ytPlaylistID).Set(1)

	directions := []string{"tg_to_yt", "yt_to_tg", "tg_to_sp", "sp_to_tg", "yt_to_sp", "sp_to_yt"}
	errorTypes := []string{
		"no_yt_match", "no_sp_match", "no_yt_match_for_download", "unexpected",
		"cycle_crash", "sync_failed", "retry_failed", "download_failed", "upload_failed",
	}
	for _, d := range directions {
		SyncCycles.WithLabelValues(d)
		TracksDiscovered.WithLabelValues(d)
		TracksSynced.WithLabelValues(d)
		DuplicatesSkipped.WithLabelValues(d)
		RetriesTotal.WithLabelValues(d)
		TracksPendingGauge.WithLabelValues(d).Set(0)
		TracksFailedGauge.WithLabelValues(d).Set(0)
		TracksSyncedGauge.WithLabelValues(d).Set(0)
		TracksDuplicateGauge.WithLabelValues(d).Set(0)
		LastSyncTimestamp.WithLabelValues(d).Set(0)
		LastSyncDuration.WithLabelValues(d).Set(0)
		LastSyncProcessed.WithLabelValues(d).Set(0)
		SyncCycleDuration.WithLabelValues(d)
		TrackSyncDuration.WithLabelValues(d)
		for _, e := range errorTypes {
			SyncErrors.WithLabelValues(d, e)
		}
	}

	for _, m := range []string{"id3", "tg_metadata", "yt_metadata", "sp_metadata", "filename"} {
		IdentificationTotal.WithLabelValues(m)
	}
	for _, r := range []string{"found", "not_found"} {
		YtSearchTotal.WithLabelValues(r)
		SpSearchTotal.WithLabelValues(r)
	}
	for _, r := range []string{"success", "failure"} {
		TgUploadTotal.WithLabelValues(r)
		DownloadTotal.WithLabelValues("yt", r)
		DownloadTotal.WithLabelValues("tg", r)
	}
}
