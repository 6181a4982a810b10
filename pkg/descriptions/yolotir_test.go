package descriptions

import (
	"path/filepath"
	"testing"

	"github.com/go-go-golems/rlaunch/pkg/ament"
	"github.com/go-go-golems/rlaunch/pkg/launch"
	"github.com/stretchr/testify/require"
)

type fakeLocator struct {
	shares map[string]string
}

func (f fakeLocator) ShareDirectory(pkg string) (string, error) {
	if s, ok := f.shares[pkg]; ok {
		return s, nil
	}
	return "", &ament.PackageNotFoundError{Package: pkg}
}

func (f fakeLocator) Executable(pkg, exe string) (string, error) {
	return filepath.Join("/opt/fake/lib", pkg, exe), nil
}

func TestYoloTIR_ActionOrder(t *testing.T) {
	desc, err := YoloTIR(fakeLocator{shares: map[string]string{"yolo_tir": "/opt/ws/share/yolo_tir"}})
	require.NoError(t, err)
	require.Len(t, desc.Actions, 3)
	require.Equal(t, []launch.ActionKind{
		launch.KindSetEnvironmentVariable,
		launch.KindDeclareArgument,
		launch.KindNode,
	}, desc.Kinds())
	require.NoError(t, desc.Validate())
}

func TestYoloTIR_Environment(t *testing.T) {
	desc, err := YoloTIR(fakeLocator{shares: map[string]string{"yolo_tir": "/x"}})
	require.NoError(t, err)

	env, ok := desc.Actions[0].(launch.SetEnvironmentVariable)
	require.True(t, ok)
	require.Equal(t, "RUST_BACKTRACE", env.Name)
	v, err := env.Value.Resolve(launch.NewContext(nil, nil))
	require.NoError(t, err)
	require.Equal(t, "full", v)
}

func TestYoloTIR_Argument(t *testing.T) {
	desc, err := YoloTIR(fakeLocator{shares: map[string]string{"yolo_tir": "/x"}})
	require.NoError(t, err)

	args := desc.Arguments()
	require.Len(t, args, 1)
	require.Equal(t, "log_level", args[0].Name)
	require.Equal(t, "WARN", args[0].Default.Describe())
	require.Equal(t, "Logging level", args[0].Description)
}

func TestYoloTIR_Node(t *testing.T) {
	share := filepath.Join(t.TempDir(), "share", "yolo_tir")
	desc, err := YoloTIR(fakeLocator{shares: map[string]string{"yolo_tir": share}})
	require.NoError(t, err)

	nodes := desc.Nodes()
	require.Len(t, nodes, 1)
	n := nodes[0]
	require.Equal(t, "yolo_tir", n.Package)
	require.Equal(t, "detection_pub", n.Executable)
	require.Equal(t, "inference_node", n.Name)
	require.Equal(t, launch.OutputScreen, n.Output)
	require.True(t, n.EmulateTTY)

	require.Len(t, n.Arguments, 3)
	require.Equal(t, "--ros-args", n.Arguments[0].Describe())
	require.Equal(t, "--log-level", n.Arguments[1].Describe())
	require.Equal(t, launch.Var("log_level"), n.Arguments[2])

	require.Len(t, n.Parameters, 1)
	require.True(t, n.Parameters[0].IsLiteral())
	require.Equal(t, filepath.Join(share, "param/net_config.yaml"), n.Parameters[0].Describe())
}

func TestYoloTIR_PackageMissing(t *testing.T) {
	desc, err := YoloTIR(fakeLocator{})
	require.Nil(t, desc)
	require.True(t, ament.IsPackageNotFound(err))
}

func TestYoloTIR_RealIndex(t *testing.T) {
	prefix := t.TempDir()
	share, err := ament.Register(prefix, "yolo_tir")
	require.NoError(t, err)

	desc, err := YoloTIR(ament.New(prefix))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(share, "param", "net_config.yaml"), desc.Nodes()[0].Parameters[0].Describe())

	desc, err = YoloTIR(ament.New(t.TempDir()))
	require.Nil(t, desc)
	require.True(t, ament.IsPackageNotFound(err))
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{"yolo_tir", "yolov7_tir"}, Names())

	_, err := Build("nope", fakeLocator{})
	require.Error(t, err)

	desc, err := Build("yolov7_tir", fakeLocator{shares: map[string]string{"yolo_tir": "/x"}})
	require.NoError(t, err)
	require.Len(t, desc.Actions, 3)
}
