package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// CreateImport starts a new import session in the `pending` state
// (spec.md §4.7, §3.1 Import).
func (s *Store) CreateImport(ctx context.Context, locID, authImp string) (Import, error) {
	if locID == "" {
		return Import{}, errs.Validation(nil, "locid is required")
	}
	imp := Import{
		ImportID:  uuid.NewString(),
		LocID:     locID,
		StartedAt: time.Now().UTC(),
		AuthImp:   authImp,
		Status:    ImportPending,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (import_id, locid, started_at, auth_imp, status)
		VALUES (?,?,?,?,?)`,
		imp.ImportID, imp.LocID, imp.StartedAt.Format(time.RFC3339), nullableString(imp.AuthImp), string(imp.Status),
	)
	if err != nil {
		return Import{}, errs.IO(err, "create import for location %s", locID)
	}
	return imp, nil
}

// UpdateImportStatus transitions an import session's status, and
// optionally stamps completed_at when moving to a terminal state
// (spec.md §4.7 session state machine).
func (s *Store) UpdateImportStatus(ctx context.Context, importID string, status ImportStatus) error {
	var completedAt any
	if status == ImportCompleted || status == ImportCancelled || status == ImportFailed {
		completedAt = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE imports SET status=?, completed_at=COALESCE(?, completed_at) WHERE import_id=?`,
		string(status), completedAt, importID)
	if err != nil {
		return errs.IO(err, "update import %s status", importID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "import %s", importID)
	}
	return nil
}

// UpdateImportCounts overwrites the aggregate outcome counters on an
// import session (spec.md §6.1 result shape: imported/duplicates/errors).
func (s *Store) UpdateImportCounts(ctx context.Context, importID string, images, videos, documents, duplicates, errCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE imports SET count_images=?, count_videos=?, count_documents=?, count_duplicates=?, count_errors=?
		WHERE import_id=?`,
		images, videos, documents, duplicates, errCount, importID)
	if err != nil {
		return errs.IO(err, "update import %s counts", importID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "import %s", importID)
	}
	return nil
}

// RequestImportCancel sets the cancel_requested flag an in-flight import
// session polls for (spec.md §5 cooperative cancellation).
func (s *Store) RequestImportCancel(ctx context.Context, importID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE imports SET cancel_requested=1 WHERE import_id=?`, importID)
	if err != nil {
		return errs.IO(err, "request cancel for import %s", importID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "import %s", importID)
	}
	return nil
}

// GetImport fetches one Import session by id.
func (s *Store) GetImport(ctx context.Context, importID string) (Import, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT import_id, locid, started_at, completed_at, auth_imp, status,
			count_images, count_videos, count_documents, count_duplicates, count_errors, notes, cancel_requested
		FROM imports WHERE import_id = ?`, importID)
	imp, err := scanImport(row)
	if err == sql.ErrNoRows {
		return Import{}, errs.NotFound(err, "import %s", importID)
	}
	if err != nil {
		return Import{}, errs.IO(err, "get import %s", importID)
	}
	return imp, nil
}

// ListImportsForLocation returns every Import session for a Location,
// most recent first.
func (s *Store) ListImportsForLocation(ctx context.Context, locID string) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, locid, started_at, completed_at, auth_imp, status,
			count_images, count_videos, count_documents, count_duplicates, count_errors, notes, cancel_requested
		FROM imports WHERE locid = ? ORDER BY started_at DESC`, locID)
	if err != nil {
		return nil, errs.IO(err, "list imports for %s", locID)
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, errs.IO(err, "scan import row")
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// ListResumableImports returns every Import session left in a
// non-terminal state across all locations, most recently started first
// (spec.md §6.4 resumable_sessions()).
func (s *Store) ListResumableImports(ctx context.Context) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, locid, started_at, completed_at, auth_imp, status,
			count_images, count_videos, count_documents, count_duplicates, count_errors, notes, cancel_requested
		FROM imports WHERE status NOT IN (?,?,?) ORDER BY started_at DESC`,
		string(ImportCompleted), string(ImportCancelled), string(ImportFailed))
	if err != nil {
		return nil, errs.IO(err, "list resumable imports")
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, errs.IO(err, "scan import row")
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

func scanImport(row rowScanner) (Import, error) {
	var imp Import
	var completedAt, notes sql.NullString
	var authImp sql.NullString
	var startedAt, status string
	var cancelRequested int

	err := row.Scan(&imp.ImportID, &imp.LocID, &startedAt, &completedAt, &authImp, &status,
		&imp.CountImages, &imp.CountVideos, &imp.CountDocuments, &imp.CountDuplicates, &imp.CountErrors, &notes, &cancelRequested)
	if err != nil {
		return Import{}, err
	}
	imp.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	imp.AuthImp = authImp.String
	imp.Status = ImportStatus(status)
	imp.Notes = notes.String
	imp.CancelRequested = cancelRequested != 0
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			imp.CompletedAt = &t
		}
	}
	return imp, nil
}

// UpsertPlannedFile inserts or updates one per-session planned-file row,
// the primary resumability mechanism (spec.md §4.7 Step 1: "Plan").
func (s *Store) UpsertPlannedFile(ctx context.Context, pf PlannedFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_planned_files (import_id, source_path, media_kind, sidecar_of, state, sha256, size_bytes, placed_path, error_message)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(import_id, source_path) DO UPDATE SET
			media_kind=excluded.media_kind, sidecar_of=excluded.sidecar_of, state=excluded.state,
			sha256=excluded.sha256, size_bytes=excluded.size_bytes, placed_path=excluded.placed_path,
			error_message=excluded.error_message`,
		pf.ImportID, pf.SourcePath, string(pf.MediaKind), nullableString(pf.SidecarOf), string(pf.State),
		nullableString(pf.SHA256), nullableInt64(pf.SizeBytes), nullableString(pf.PlacedPath), nullableString(pf.ErrorMessage),
	)
	if err != nil {
		return errs.IO(err, "upsert planned file %s/%s", pf.ImportID, pf.SourcePath)
	}
	return nil
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// ListPlannedFiles returns every planned-file row for a session,
// optionally filtered to a single state (pass "" for all), the query
// resume picks up from on restart (spec.md §4.7).
func (s *Store) ListPlannedFiles(ctx context.Context, importID string, state PlannedFileState) ([]PlannedFile, error) {
	query := `SELECT import_id, source_path, media_kind, sidecar_of, state, sha256, size_bytes, placed_path, error_message
		FROM import_planned_files WHERE import_id = ?`
	args := []any{importID}
	if state != "" {
		query += " AND state = ?"
		args = append(args, string(state))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.IO(err, "list planned files for %s", importID)
	}
	defer rows.Close()

	var out []PlannedFile
	for rows.Next() {
		var pf PlannedFile
		var sidecarOf, sha256, placedPath, errorMessage sql.NullString
		var sizeBytes sql.NullInt64
		var mediaKind, state string
		if err := rows.Scan(&pf.ImportID, &pf.SourcePath, &mediaKind, &sidecarOf, &state, &sha256, &sizeBytes, &placedPath, &errorMessage); err != nil {
			return nil, errs.IO(err, "scan planned file row")
		}
		pf.MediaKind = MediaKind(mediaKind)
		pf.State = PlannedFileState(state)
		pf.SidecarOf, pf.SHA256, pf.PlacedPath, pf.ErrorMessage = sidecarOf.String, sha256.String, placedPath.String, errorMessage.String
		pf.SizeBytes = sizeBytes.Int64
		out = append(out, pf)
	}
	return out, rows.Err()
}

// CountPlannedFilesByState returns how many planned-file rows in a
// session are in each state, for progress reporting.
func (s *Store) CountPlannedFilesByState(ctx context.Context, importID string) (map[PlannedFileState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM import_planned_files WHERE import_id = ? GROUP BY state`, importID)
	if err != nil {
		return nil, errs.IO(err, "count planned files for %s", importID)
	}
	defer rows.Close()

	out := make(map[PlannedFileState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, errs.IO(err, "scan planned file count row")
		}
		out[PlannedFileState(state)] = n
	}
	return out, rows.Err()
}
