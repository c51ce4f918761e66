package pipeline

import "context"

// ReorgHook is invoked when a chain reorg is detected. This repo never
// detects reorgs and never calls a ReorgHook; the interface exists so a
// caller can wire reorg recovery in without changing the pipeline's shape.
type ReorgHook interface {
	OnReorg(ctx context.Context, chainID uint32, commonAncestor uint64) error
}
