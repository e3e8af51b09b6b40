package silver

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the bindings silver would start",
	Long:  `Print every enabled source topic with its destination topic and Iceberg table, then exit. Approval is ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Bronze.Topics) == 0 {
			logger.Warn("no input topics configured, the plan is empty")
		}
		m := newManager()
		for _, topic := range m.Unclaimed() {
			logger.Debug("unclaimed topic", zap.String("topic", topic))
		}
		return m.PrintPlan(os.Stdout)
	},
}
