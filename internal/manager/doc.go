// Package manager owns the inference session of the assistant: admission,
// prompt augmentation, token streaming and failure recovery. It is structured
// into small files by concern:
//
//   - manager.go: core Manager type, constructor, Cancel/Reset/Close.
//   - config.go: ManagerConfig and package defaults.
//   - state.go: the admission state machine (Idle, Generating, Busy, Closed).
//   - generate.go: GenerateStreaming and the per-job worker.
//   - watchdog.go: per-job timeout and caller cancellation.
//   - blocking.go: GenerateBlocking and its sentinels.
//   - stream.go: Stream, the ordered event channel handed to callers.
//   - prompt.go, memory.go: prompt assembly and the bounded memory ring.
//   - session.go: the single live Session and its recreation.
//   - errors.go: error types, notices and the overflow predicate.
//   - status_report.go, sanity.go: Status/Snapshot reporting helpers.
//
// Every generation ends with the session being discarded and reopened, so no
// engine state leaks from one query into the next; continuity comes only from
// the memory ring rendered into the prompt.
//
// Build tags and runtimes:
//
//   - In-process llama: go-llama.cpp adapter, enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go. adapter_llama_stub.go refuses to
//     load a model when the tag is not set.
//   - llama-server: HTTP adapter (adapter_llama_server.go) for an external
//     server, including image queries through image_data.
//   - spawn: adapter_llama_subprocess.go starts llama-server for the model and
//     stops it on Close.
package manager
