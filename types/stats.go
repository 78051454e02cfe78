package types

// ArchiveStats is the dashboard summary of how posts are partitioned
// across the active and archived buckets
type ArchiveStats struct {
	TotalPosts        int  `json:"total_posts"`
	ActivePosts       int  `json:"active_posts"`
	ArchivedPosts     int  `json:"archived_posts"`
	ArchiveDays       int  `json:"archive_days"`
	ArchiveCutoffDate Date `json:"archive_cutoff_date"`
}
