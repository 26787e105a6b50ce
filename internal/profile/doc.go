// Package profile handles parsing, validation, and environment rendering
// of paddock launch profiles.
//
// A profile is one declarative description of how to run the auto_derby
// automation module: which job, which plugins, which device, where debug
// artifacts land. Profiles come in two formats:
//
//   - YAML (.yaml / .yml), parsed strictly so typos fail loudly
//   - JSONC (.jsonc / .json), comments stripped via github.com/tidwall/jsonc
//
// The package's central operation is RenderEnv: turning a profile plus a
// resolved device address into the exact AUTO_DERBY_* variable map the
// child process receives. Rendering is pure and deterministic; EncodeEnv
// produces a sorted KEY=VALUE slice so identical profiles always compose
// identical environments.
package profile
