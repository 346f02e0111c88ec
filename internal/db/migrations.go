package db

import (
	"fmt"
	"strings"

	"gpio_control_server/internal/pins"
	"gpio_control_server/pkg/logger"

	"gorm.io/gorm"
)

// pinColumns lists every column that stores a header pin
var pinColumns = map[string][]string{
	"stepper_motors": {"direction_pin", "step_pin", "ms1_pin", "ms2_pin", "ms3_pin"},
	"push_switches":  {"input_pin"},
}

func whitelistSQL() string {
	avail := pins.Available()
	parts := make([]string, len(avail))
	for i, p := range avail {
		parts[i] = fmt.Sprint(int(p))
	}
	return strings.Join(parts, ",")
}

// addPinConstraints backs the application whitelist with CHECK constraints
// so rows written outside the server cannot hold unusable pins
func addPinConstraints(db *gorm.DB, log *logger.Logger) error {
	whitelist := whitelistSQL()
	for table, columns := range pinColumns {
		for _, column := range columns {
			name := fmt.Sprintf("chk_%s_%s", table, column)

			var exists int64
			if err := db.Raw(`
				SELECT COUNT(*)
				FROM information_schema.table_constraints
				WHERE table_name = ? AND constraint_name = ?
			`, table, name).Scan(&exists).Error; err != nil {
				return err
			}
			if exists > 0 {
				continue
			}

			stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s IS NULL OR %s IN (%s))",
				table, name, column, column, whitelist)
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			log.Logger.Info().Str("constraint", name).Msg("added pin whitelist constraint")
		}
	}
	return nil
}
