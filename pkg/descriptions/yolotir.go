package descriptions

import (
	"path/filepath"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/launch"
)

const (
	YoloTIRPackage    = "yolo_tir"
	YoloTIRExecutable = "detection_pub"
	YoloTIRNodeName   = "inference_node"
	YoloTIRParamFile  = "param/net_config.yaml"

	BacktraceEnv   = "RUST_BACKTRACE"
	BacktraceValue = "full"

	LogLevelArgument = "log_level"
	DefaultLogLevel  = "WARN"
)

// YoloTIR builds the description for the thermal-infrared detection node.
// The share directory is looked up eagerly: if yolo_tir is not installed the
// error is returned and no description is produced.
func YoloTIR(loc ament.Locator) (*launch.Description, error) {
	share, err := loc.ShareDirectory(YoloTIRPackage)
	if err != nil {
		return nil, err
	}

	return launch.NewDescription(
		// the detector is a native binary; full backtraces on panic
		launch.SetEnvironmentVariable{
			Name:  BacktraceEnv,
			Value: launch.Literal(BacktraceValue),
		},
		launch.DeclareArgument{
			Name:        LogLevelArgument,
			Default:     launch.Literal(DefaultLogLevel),
			Description: "Logging level",
		},
		launch.Node{
			Package:    YoloTIRPackage,
			Executable: YoloTIRExecutable,
			Name:       YoloTIRNodeName,
			Output:     launch.OutputScreen,
			EmulateTTY: true,
			Arguments: append(
				launch.Literals("--ros-args", "--log-level"),
				launch.Var(LogLevelArgument),
			),
			Parameters: []launch.Value{
				launch.Literal(filepath.Join(share, YoloTIRParamFile)),
			},
		},
	), nil
}
