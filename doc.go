// Package browsercore drives a Chromium-family browser over the Chrome
// DevTools Protocol: one WebSocket connection multiplexed across many
// attached targets, a DOM/element runtime, human-paced input synthesis, a
// waiter engine for page-state synchronization, and passive/active network
// observation, finished off with a stealth patcher for fingerprint
// consistency.
//
// The protocol stack itself lives in focused subpackages (transport, mux,
// targetmgr, page, domsvc, input, waiter, netmon, stealth, eventbus); this
// package is the public facade that wires them together, exposing Browser
// and Page as the two types most callers ever construct directly.
//
// Browser process launch, profile management, and executable discovery are
// deliberately not this package's concern — Connect and ConnectHost take an
// already-listening DevTools endpoint, the way net.Dial takes an address
// rather than starting a server.
package browsercore
