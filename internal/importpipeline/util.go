package importpipeline

import (
	"context"
	"os"
)

func osStat(path string) (os.FileInfo, error) { return os.Stat(path) }

func fileMtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// checkCancel is the cooperative-cancellation check run at every planned-
// file boundary (spec.md §5 Suspension points / Cancellation semantics).
func (p *Pipeline) checkCancel(ctx context.Context, importID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, nil
	}
	imp, err := p.catalog.GetImport(ctx, importID)
	if err != nil {
		return false, err
	}
	return imp.CancelRequested, nil
}
