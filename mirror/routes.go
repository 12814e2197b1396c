/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mirror

import "ordermirror/model"

// RouteLookup resolves a route name to its configuration, in particular
// which short-locate sub-protocol variant a LOCATE route speaks.
type RouteLookup interface {
	Route(name string) (model.Route, bool)
}

// StaticRoutes is a RouteLookup backed by a fixed map, the common case
// since routes change rarely relative to copy rules.
type StaticRoutes map[string]model.Route

func (s StaticRoutes) Route(name string) (model.Route, bool) {
	r, ok := s[name]
	return r, ok
}
