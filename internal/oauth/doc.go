// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package oauth implements the Google login flow: authorization redirect,
// signed state cookie, code exchange and userinfo lookup. It produces the
// provider assertion (subject, email) consumed by auth.Service.
package oauth
