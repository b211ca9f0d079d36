// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package memory provides in-process user and session stores for
// single-instance deployments and tests.
package memory
