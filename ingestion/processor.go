// Copyright 2025 Poiesic Systems
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


package ingestion

import "context"

// processor enriches rows after they are stored. The pipeline runs each
// processor on its worker pool with the product IDs of one stored batch;
// missing IDs are skipped, so a processor may run after rows were replaced.
type processor interface {
	process(ctx context.Context, productIDs ...string) error
}
