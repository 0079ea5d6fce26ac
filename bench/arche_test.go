package bench

import (
	"testing"

	"github.com/mlange-42/arche/ecs"
)

// archeWorld mirrors newBenchStore.
func archeWorld() (*ecs.World, ecs.ID, ecs.ID) {
	world := ecs.NewWorld(ecs.NewConfig().WithCapacityIncrement(1024))
	posID := ecs.ComponentID[Position](&world)
	velID := ecs.ComponentID[Velocity](&world)
	ecs.NewBuilder(&world, posID, velID).NewBatch(nPosVel)
	ecs.NewBuilder(&world, posID).NewBatch(nPos)
	return &world, posID, velID
}

func BenchmarkIterArcheQuery(b *testing.B) {
	b.StopTimer()
	world, posID, velID := archeWorld()
	filter := ecs.All(posID, velID)
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		q := world.Query(filter)
		for q.Next() {
			pos := (*Position)(q.Get(posID))
			vel := (*Velocity)(q.Get(velID))
			pos.X += vel.X
			pos.Y += vel.Y
		}
	}
}

func BenchmarkSpawnArcheBatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		world := ecs.NewWorld(ecs.NewConfig().WithCapacityIncrement(1024))
		posID := ecs.ComponentID[Position](&world)
		velID := ecs.ComponentID[Velocity](&world)
		ecs.NewBuilder(&world, posID, velID).NewBatch(nPos + nPosVel)
	}
}
