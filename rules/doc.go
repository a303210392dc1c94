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


// Package rules filters discovery candidates against declarative business rules.
//
// A RuleConfig names the product lines that are governed during obsolescence
// searches and, for each, the commercial statuses that mean a product is still
// available. Apply moves such candidates to an exclusion list with a reason;
// it never drops a candidate silently.
//
// Rules are usually loaded from TOML:
//
//	active_statuses = ["Active", "Commercialised"]
//
//	[lines."Medium Voltage"]
//	exclude_if_status_in = ["Commercialised", "Active"]
//
// Line and status names compare case and accent insensitively.
package rules
