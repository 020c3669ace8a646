// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import "context"

type ctxKey string

const backendKey ctxKey = "storage.backend"

// WithBackend attaches an initialized backend to ctx.
func WithBackend(ctx context.Context, b Backend) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, backendKey, b)
}

// BackendFromContext returns the backend attached by WithBackend.
func BackendFromContext(ctx context.Context) (Backend, bool) {
	if ctx == nil {
		return nil, false
	}
	b, ok := ctx.Value(backendKey).(Backend)
	return b, ok && b != nil
}
