package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// CreateSubLocation inserts a SubLocation, enforcing at-most-one
// is_primary per parent Location (spec.md §3.1 SubLocation invariants).
func (s *Store) CreateSubLocation(ctx context.Context, sub SubLocation) (SubLocation, error) {
	if strings.TrimSpace(sub.Subnam) == "" {
		return SubLocation{}, errs.Validation(nil, "subnam is required")
	}
	if sub.LocID == "" {
		return SubLocation{}, errs.Validation(nil, "locid is required")
	}
	if sub.SubID == "" {
		sub.SubID = uuid.NewString()
	}
	sub.Sub12 = loc12FromUUID(sub.SubID)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if sub.IsPrimary {
			if _, err := tx.ExecContext(ctx, `UPDATE sublocations SET is_primary = 0 WHERE locid = ?`, sub.LocID); err != nil {
				return errs.IO(err, "clear existing primary sublocation for %s", sub.LocID)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sublocations (subid, sub12, locid, subnam, ssubname, type, status, hero_imgsha, is_primary)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			sub.SubID, sub.Sub12, sub.LocID, sub.Subnam, nullableString(sub.SSubname),
			nullableString(sub.Type), nullableString(sub.Status), nullableString(sub.HeroImgSHA), boolToInt(sub.IsPrimary),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errs.Conflict(err, "sublocation %q already exists under location %s", sub.Subnam, sub.LocID)
			}
			return errs.IO(err, "insert sublocation %s", sub.SubID)
		}
		return nil
	})
	if err != nil {
		return SubLocation{}, err
	}
	return sub, nil
}

// UpdateSubLocation applies changes to an existing SubLocation, same
// is_primary exclusivity rule as CreateSubLocation.
func (s *Store) UpdateSubLocation(ctx context.Context, sub SubLocation) error {
	if strings.TrimSpace(sub.Subnam) == "" {
		return errs.Validation(nil, "subnam is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if sub.IsPrimary {
			if _, err := tx.ExecContext(ctx, `UPDATE sublocations SET is_primary = 0 WHERE locid = ? AND subid != ?`, sub.LocID, sub.SubID); err != nil {
				return errs.IO(err, "clear existing primary sublocation for %s", sub.LocID)
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE sublocations SET subnam=?, ssubname=?, type=?, status=?, hero_imgsha=?, is_primary=?
			WHERE subid=?`,
			sub.Subnam, nullableString(sub.SSubname), nullableString(sub.Type), nullableString(sub.Status),
			nullableString(sub.HeroImgSHA), boolToInt(sub.IsPrimary), sub.SubID,
		)
		if err != nil {
			return errs.IO(err, "update sublocation %s", sub.SubID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.NotFound(nil, "sublocation %s", sub.SubID)
		}
		return nil
	})
}

// GetSubLocation fetches one SubLocation by id.
func (s *Store) GetSubLocation(ctx context.Context, subID string) (SubLocation, error) {
	row := s.db.QueryRowContext(ctx, subLocationSelectColumns+` FROM sublocations WHERE subid = ?`, subID)
	sub, err := scanSubLocation(row)
	if err == sql.ErrNoRows {
		return SubLocation{}, errs.NotFound(err, "sublocation %s", subID)
	}
	if err != nil {
		return SubLocation{}, errs.IO(err, "get sublocation %s", subID)
	}
	return sub, nil
}

// ListSubLocations returns every SubLocation under a Location.
func (s *Store) ListSubLocations(ctx context.Context, locID string) ([]SubLocation, error) {
	rows, err := s.db.QueryContext(ctx, subLocationSelectColumns+` FROM sublocations WHERE locid = ? ORDER BY is_primary DESC, subnam ASC`, locID)
	if err != nil {
		return nil, errs.IO(err, "list sublocations for %s", locID)
	}
	defer rows.Close()

	var out []SubLocation
	for rows.Next() {
		sub, err := scanSubLocation(rows)
		if err != nil {
			return nil, errs.IO(err, "scan sublocation row")
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// DeleteSubLocation removes a SubLocation; media rows referencing it are
// detached (ON DELETE SET NULL), same convention as DeleteLocation.
func (s *Store) DeleteSubLocation(ctx context.Context, subID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sublocations WHERE subid = ?`, subID)
	if err != nil {
		return errs.IO(err, "delete sublocation %s", subID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "sublocation %s", subID)
	}
	return nil
}

const subLocationSelectColumns = `SELECT subid, sub12, locid, subnam, ssubname, type, status, hero_imgsha, is_primary`

func scanSubLocation(row rowScanner) (SubLocation, error) {
	var sub SubLocation
	var ssubname, typ, status, heroImgSHA sql.NullString
	var isPrimary int
	err := row.Scan(&sub.SubID, &sub.Sub12, &sub.LocID, &sub.Subnam, &ssubname, &typ, &status, &heroImgSHA, &isPrimary)
	if err != nil {
		return SubLocation{}, err
	}
	sub.SSubname, sub.Type, sub.Status, sub.HeroImgSHA = ssubname.String, typ.String, status.String, heroImgSHA.String
	sub.IsPrimary = isPrimary != 0
	return sub, nil
}
