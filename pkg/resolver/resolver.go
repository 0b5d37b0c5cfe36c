// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import "context"

// Resolver looks up the canonical reference-manager record for an
// absolute PDF path. A nil, nil return means unresolved — the caller
// (C8) does not distinguish transient from permanent failure. A
// non-nil error means the lookup itself malfunctioned and should be
// wrapped as a ResolverError by the caller.
type Resolver interface {
	Resolve(ctx context.Context, pdfPath string) (*Record, error)
}

// MockResolver is a test and fixture double. ResolveFunc, when set, is
// called directly; otherwise Records is consulted by exact path match.
type MockResolver struct {
	ResolveFunc func(ctx context.Context, pdfPath string) (*Record, error)
	Records     map[string]*Record
}

func (m *MockResolver) Resolve(ctx context.Context, pdfPath string) (*Record, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, pdfPath)
	}
	if rec, ok := m.Records[pdfPath]; ok {
		return rec, nil
	}
	return nil, nil
}
