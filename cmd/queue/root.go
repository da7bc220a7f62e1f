package queue

import (
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore
	front    bool

	// QueueCommands represents the deque command group
	QueueCommands = &cobra.Command{
		Use:                "queue",
		Short:              "Perform deque operations",
		PersistentPreRunE:  setupQueueClient,
		PersistentPostRunE: closeQueueClient,
	}

	// pushCmd represents the push command
	pushCmd = &cobra.Command{
		Use:   "push [key] [value]",
		Short: "Adds a value to the deque at key",
		Long:  "Adds a value at the back of the deque at key (or at the front with --front). A missing deque is created.",
		Args:  cobra.ExactArgs(2),
		RunE:  runPush,
	}

	// popCmd represents the pop command
	popCmd = &cobra.Command{
		Use:   "pop [key]",
		Short: "Removes and prints the value at the back (or --front) of the deque at key",
		Args:  cobra.ExactArgs(1),
		RunE:  runPop,
	}

	// lenCmd represents the len command
	lenCmd = &cobra.Command{
		Use:   "len [key]",
		Short: "Prints the length of the deque at key",
		Args:  cobra.ExactArgs(1),
		RunE:  runLen,
	}
)

func init() {
	QueueCommands.AddCommand(pushCmd)
	QueueCommands.AddCommand(popCmd)
	QueueCommands.AddCommand(lenCmd)

	util.SetupRPCClientFlags(QueueCommands, 100)

	pushCmd.Flags().BoolVar(&front, "front", false, "Push to the front instead of the back")
	popCmd.Flags().BoolVar(&front, "front", false, "Pop from the front instead of the back")
}

// setupQueueClient initializes the store client
func setupQueueClient(cmd *cobra.Command, _ []string) (err error) {
	rpcStore, err = util.NewStoreClient(cmd)
	return err
}

func closeQueueClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}

// runPush handles the push command
func runPush(_ *cobra.Command, args []string) error {
	length, _, err := rpcStore.Push([]byte(args[0]), util.ParseValue(args[1]), front)
	if err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}

	fmt.Printf("length=%d\n", length)
	return nil
}

// runPop handles the pop command
func runPop(_ *cobra.Command, args []string) error {
	v, _, err := rpcStore.Pop([]byte(args[0]), front)
	if err != nil {
		return fmt.Errorf("failed to pop: %w", err)
	}

	fmt.Println(util.FormatValue(v))
	return nil
}

// runLen handles the len command
func runLen(_ *cobra.Command, args []string) error {
	length, err := rpcStore.QLen([]byte(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("length=%d\n", length)
	return nil
}
