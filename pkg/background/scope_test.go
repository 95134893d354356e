package background

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

func randInt() int {
	sign := rand.Intn(100)
	value := rand.Intn(math.MaxInt32)
	if sign < 50 {
		return -value
	}
	return value
}

func producer(id string, data chan<- int) func(ctx context.Context) {
	return func(ctx context.Context) {
		produce(ctx, id, data)
	}
}

func produce(ctx context.Context, id string, data chan<- int) {
	for {
		select {
		case data <- randInt():
		case <-ctx.Done():
			fmt.Println(id, "done")
			return
		}
	}
}

func consumer(id string, data <-chan int) func(ctx context.Context) {
	return func(ctx context.Context) {
		consume(ctx, id, data)
	}
}

func consume(ctx context.Context, id string, data <-chan int) {
	for {
		select {
		case _, ok := <-data:
			if !ok {
				fmt.Println(id, "exited on closed data channel")
				return
			}
		case <-ctx.Done():
			fmt.Println(id, "done")
			return
		}
	}
}

func ExampleScope() {
	data1, data2, data3 := make(chan int), make(chan int), make(chan int)

	write1, cancelWrite1 := NewScope()
	read1, cancelRead1 := NewScope()
	write2, cancelWrite2 := NewScope()
	read3, cancelRead3 := NewScope()

	write1.Go(producer("DATA-1 *PRODUCER*", data1))
	read1.Go(consumer("DATA-1 *CONSUMER*", data1))

	write2.Go(producer("DATA-2 *PRODUCER*", data2)) // blocked due to no consumer for data2

	read3.Go(consumer("DATA-3 *CONSUMER*", data3)) // blocked due to no producer for data3

	time.Sleep(50 * time.Millisecond)

	// Cancel all background scopes in desired order:
	cancelWrite2()
	cancelRead3()
	cancelWrite1()
	cancelRead1()

	// Output:
	//
	// DATA-2 *PRODUCER* done
	// DATA-3 *CONSUMER* done
	// DATA-1 *PRODUCER* done
	// DATA-1 *CONSUMER* done
}

func ExampleScope_severalMembers() {
	data := make(chan int)

	scope, cancel := NewScope()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("*PRODUCER-%d*", i)
		scope.Go(func(ctx context.Context) {
			for {
				select {
				case data <- randInt():
				case <-ctx.Done():
					fmt.Println(id, "done")
					return
				}
			}
		})
	}

	time.Sleep(50 * time.Millisecond)

	cancel()

	// Unordered output:
	//
	// *PRODUCER-1* done
	// *PRODUCER-2* done
	// *PRODUCER-3* done
}

func ExampleScope_Active() {
	scope1, cancel1 := NewScope()
	defer cancel1()
	scope2, cancel2 := NewScope()
	cancel2()
	fmt.Println(scope1.Active(), scope2.Active())

	// Output:
	// true false
}

func ExampleScope_Go() {
	parent, stopParent := context.WithCancel(context.Background())
	scope, cancel := WithParent(parent)
	defer cancel()

	started := make(chan struct{})
	scope.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		fmt.Println("member done:", ctx.Err())
	})
	<-started

	stopParent()
	cancel()
	fmt.Println("accepts members after cancel:", scope.Go(func(context.Context) {}))

	// Output:
	// member done: context canceled
	// accepts members after cancel: false
}
