/*
Package generator produces the synthetic workflow events that drive
flowpulse.

Each event gets a fresh "ev_" prefixed UUID and a type drawn from a fixed
distribution: 60% completed, 20% pending and 20% anomaly. Completed events
carry a cycle time in [10, 130] minutes, anomalies a severity in [1, 5], and
pending events carry neither.

# Determinism

A Generator owns its random source and clock. Tests and seeded history
inject both, along with the id function:

	gen := generator.New(generator.Options{
		Rand: rand.New(rand.NewSource(42)),
		Now:  func() time.Time { return fixed },
	})
	evt := gen.GenerateAt(fixed.Add(-time.Hour).UnixMilli())

All draws go through one mutex, so a Generator may be shared between the
simulation loop and the history seeder.
*/
package generator
