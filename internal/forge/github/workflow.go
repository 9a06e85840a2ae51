package github

import (
	"encoding/json"
	"fmt"

	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
)

const (
	// WorkflowPath is the pipeline-definition file. It must be pushed last
	// so that exactly one run is triggered per push and that run sees the
	// complete file-set.
	WorkflowPath = ".github/workflows/android.yml"

	// ArtifactName is the named artifact the build job uploads.
	ArtifactName = "app-debug"

	webDir = "www"
)

// capacitorConfig is the packaging manifest synthesized from the project
// config and pushed alongside the workspace files.
type capacitorConfig struct {
	AppID   string `json:"appId"`
	AppName string `json:"appName"`
	WebDir  string `json:"webDir"`
}

func capacitorConfigJSON(cfg projdomain.ProjectConfig) string {
	appName := cfg.AppName
	if appName == "" {
		appName = projdomain.DefaultConfig().AppName
	}
	out, _ := json.MarshalIndent(capacitorConfig{
		AppID:   projdomain.SanitizePackageName(cfg.PackageName),
		AppName: appName,
		WebDir:  webDir,
	}, "", "  ")
	return string(out)
}

// WorkflowYAML renders the two-job pipeline: build the mobile binary, then
// publish the admin workspace as a static site. The concurrency group
// cancels an in-progress run when a new push lands on the same branch.
func WorkflowYAML(cfg projdomain.ProjectConfig) string {
	appID := projdomain.SanitizePackageName(cfg.PackageName)
	appName := cfg.AppName
	if appName == "" {
		appName = projdomain.DefaultConfig().AppName
	}
	return fmt.Sprintf(workflowTemplate, appID, appName)
}

const workflowTemplate = `name: Build Android APK & Deploy Web
on:
  push:
    branches: [ main ]
  workflow_dispatch:

# Prevent multiple concurrent runs for the same project
concurrency:
  group: ${{ github.workflow }}-${{ github.ref }}
  cancel-in-progress: true

permissions:
  contents: write
  pages: write
  id-token: write

jobs:
  build-apk:
    name: Build Android Binary
    runs-on: ubuntu-latest
    steps:
      - name: Checkout Code
        uses: actions/checkout@v4

      - name: Set up JDK 21
        uses: actions/setup-java@v4
        with:
          java-version: '21'
          distribution: 'temurin'

      - name: Set up Node.js
        uses: actions/setup-node@v4
        with:
          node-version: 22

      - name: Initialize and Build APK
        run: |
          rm -rf www android
          mkdir -p www
          cp -r app/* www/ || true
          echo '{"appId": "%s", "appName": "%s", "webDir": "www", "bundledWebRuntime": false}' > capacitor.config.json
          if [ ! -f package.json ]; then npm init -y; fi
          npm install @capacitor/core@latest @capacitor/cli@latest @capacitor/android@latest @capacitor/assets@latest
          npx cap add android
          echo "android.enableJetifier=true" >> android/gradle.properties
          echo "android.useAndroidX=true" >> android/gradle.properties
          sed -i 's/JavaVersion.VERSION_17/JavaVersion.VERSION_21/g' android/app/build.gradle
          npx cap copy android
          cd android && chmod +x gradlew && ./gradlew assembleDebug

      - name: Upload APK
        uses: actions/upload-artifact@v4
        with:
          name: app-debug
          path: android/app/build/outputs/apk/debug/app-debug.apk

  deploy-admin:
    name: Deploy Admin Panel
    runs-on: ubuntu-latest
    needs: build-apk
    steps:
      - name: Checkout
        uses: actions/checkout@v4

      - name: Setup Pages
        uses: actions/configure-pages@v4

      - name: Upload Artifact
        uses: actions/upload-pages-artifact@v3
        with:
          path: 'admin/'

      - name: Deploy to GitHub Pages
        id: deployment
        uses: actions/deploy-pages@v4
`
