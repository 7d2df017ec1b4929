package dto

// TimetableImportResult summarises a timetable import.
type TimetableImportResult struct {
	Rows            int      `json:"rows"`
	RowsWithTeacher int      `json:"rows_with_teacher"`
	Inserted        int      `json:"inserted"`
	SkippedRows     int      `json:"skipped_rows"`
	MissingTeachers []string `json:"missing_teachers,omitempty"`

	// CacheStale is set when the new timetable is stored but cached lookups
	// could not be dropped.
	CacheStale bool `json:"cache_stale,omitempty"`
}
