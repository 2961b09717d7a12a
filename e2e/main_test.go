package e2e

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

var (
	appURL string
)

const (
	adminUser     = "testuser"
	adminPassword = "testpass123"
)

// testModel predicts -20 + 5*male + 0.1*age + 0.2*weight + 6*duration + 0.5*heart_rate.
const testModel = `{
    "kind": "linear",
    "intercept": -20,
    "coefficients": [5, 0.1, 0, 0.2, 6, 0.5, 0],
    "features": ["gender", "age", "height", "weight", "duration", "heart_rate", "body_temp"]
}`

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

func runTestMain(m *testing.M) int {
	// 1. Build the binary
	// We assume the test is run from the e2e directory (via go test ./e2e/...)
	// so the main package is at ../cmd/server
	buildPath := filepath.Join(os.TempDir(), "fitness-dashboard-test")
	cmd := exec.Command("go", "build", "-o", buildPath, "../cmd/server")
	// If running from root, adjust path
	if _, err := os.Stat("../cmd/server"); os.IsNotExist(err) {
		if _, err := os.Stat("cmd/server"); err == nil {
			cmd = exec.Command("go", "build", "-o", buildPath, "./cmd/server")
		} else {
			fmt.Println("Could not find cmd/server to build")
			return 1
		}
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		fmt.Printf("Failed to build app: %v\n%s\n", err, output)
		return 1
	}
	defer os.Remove(buildPath)

	// 2. Start the server against a scratch directory
	dataDir, err := os.MkdirTemp("", "fitness-e2e")
	if err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dataDir)

	modelPath := filepath.Join(dataDir, "calories_model.json")
	if err := os.WriteFile(modelPath, []byte(testModel), 0o600); err != nil {
		fmt.Printf("Failed to write model: %v\n", err)
		return 1
	}

	port := "8081"
	appURL = "http://localhost:" + port

	serverCmd := exec.Command(buildPath, "-config", filepath.Join(dataDir, "absent.toml"))
	serverCmd.Env = append(os.Environ(),
		"PORT="+port,
		"STORE_PATH="+filepath.Join(dataDir, "users.json"),
		"DB_PATH="+filepath.Join(dataDir, "sessions.db"),
		"MODEL_PATH="+modelPath,
		"ADMIN_USER="+adminUser,
		"ADMIN_PASSWORD="+adminPassword,
	)
	serverCmd.Dir = ".." // Run from project root so it finds web/templates
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	if err := serverCmd.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		return 1
	}

	// Wait for server to be ready; /dashboard redirects to the login page
	ready := false
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		resp, err := http.Get(appURL + "/dashboard")
		if err == nil && resp.StatusCode == 200 {
			ready = true
			resp.Body.Close()
			break
		}
	}

	if !ready {
		fmt.Println("Server failed to start or is not reachable")
		serverCmd.Process.Kill()
		return 1
	}

	// 3. Run tests
	code := m.Run()

	// 4. Cleanup
	if err := serverCmd.Process.Kill(); err != nil {
		fmt.Printf("Failed to kill server: %v\n", err)
	}

	return code
}
