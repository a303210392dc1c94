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


// Package postgres implements storage.CatalogRepository over a PostgreSQL
// product catalog using the pg_trgm extension.
//
// The repository is read-only. It expects one table holding the text columns
// named in core.TextFields, product_id and commercial_status, plus one double
// precision column per numeric attribute:
//
//	CREATE EXTENSION IF NOT EXISTS pg_trgm;
//	CREATE TABLE catalog_products (
//	    product_id        text PRIMARY KEY,
//	    range_label       text NOT NULL,
//	    subrange_label    text,
//	    description       text,
//	    brand             text,
//	    product_line      text NOT NULL,
//	    commercial_status text NOT NULL,
//	    voltage_kv        double precision,
//	    current_a         double precision,
//	    frequency_hz      double precision
//	);
//	CREATE INDEX ON catalog_products USING gin (range_label gin_trgm_ops);
//	CREATE INDEX ON catalog_products USING gin (description gin_trgm_ops);
//
// Rows that fail core.ValidateCatalogEntry are logged and dropped.
package postgres
