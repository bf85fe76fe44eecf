/*
Package resilience provides a circuit breaker for best-effort disk I/O.

# Overview

Screenshot writes happen on the snapshot capture path. When the disk is full
or read-only every write fails; the breaker turns those repeated failures into
an immediate ErrCircuitOpen for a cooldown period instead of paying for
another failing write each time.

# Usage

	breaker := resilience.New("assets", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Execute(func() error {
		return atomicfile.Save(path, data, 0o600)
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probes ok]-> Closed
	                                                        |
	                                                    [failure]
	                                                        v
	                                                      Open
*/
package resilience
