// Package device resolves the profile's adb_address syntax into the
// concrete "host:port" string the automation module receives.
//
// Accepted address forms:
//
//	""                          no device — the desktop client
//	"host:port"                 literal ADB endpoint
//	"auto"                      probe well-known local emulator ports
//	"bluestacks://<instance>"   read the port from bluestacks.conf
//	"host:instance:conf"        legacy BlueStacks triple syntax
//	"docker://<name>"           a paddock-managed emulator container
//
// Resolution is the only place the launcher touches the network: a quick
// TCP dial confirms the device is reachable before the child is spawned.
// The launcher never speaks the ADB protocol itself — that is the child's
// job.
package device
