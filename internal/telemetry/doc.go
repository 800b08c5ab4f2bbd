// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes Prometheus metrics for docchat.
//
// Metrics are registered against an explicit prometheus.Registerer so tests
// can use a private registry. Every method on *Metrics is safe to call on a
// nil receiver, which lets callers treat metrics as optional.
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.New(reg)
//	m.ObserveRequest("search", "ok", time.Since(start))
//
//	http.Handle("/metrics", telemetry.Handler(reg))
package telemetry
