package proxima_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/proxima"
)

func Example() {
	ctx := context.Background()

	dataset := []float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}

	idx, err := proxima.New(dataset, 2)
	if err != nil {
		log.Fatal(err)
	}

	if err := idx.BuildIndex(ctx); err != nil {
		log.Fatal(err)
	}

	res, err := idx.KNNSearch(ctx, []float32{0, 0}, 2, 2)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Indices[0])
	fmt.Println(res.Distances[0])
	// Output:
	// [0 1]
	// [0 1]
}

func ExampleIndex_RadiusSearch() {
	ctx := context.Background()

	dataset := []float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}

	idx, err := proxima.New(dataset, 2)
	if err != nil {
		log.Fatal(err)
	}

	if err := idx.BuildIndex(ctx); err != nil {
		log.Fatal(err)
	}

	res, total, err := idx.RadiusSearch(ctx, []float32{0, 0}, 2, 1.5)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(total)
	fmt.Println(res.Indices[0])
	// Output:
	// 3
	// [0 1 2]
}

func ExampleNewFromFile() {
	ctx := context.Background()

	dataset := []float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}

	idx, err := proxima.New(dataset, 2, proxima.WithTargetPrecision(0.9))
	if err != nil {
		log.Fatal(err)
	}

	if err := idx.BuildIndex(ctx); err != nil {
		log.Fatal(err)
	}

	dir, err := os.MkdirTemp("", "proxima")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "example.prx")
	if err := idx.Save(ctx, filename); err != nil {
		log.Fatal(err)
	}

	loaded, err := proxima.NewFromFile(ctx, dataset, 2, filename)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(loaded.Veclen(), loaded.Size())
	// Output:
	// 2 4
}
