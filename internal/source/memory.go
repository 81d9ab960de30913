package source

import (
	"context"
	"sort"
	"sync"
)

// Memory serves a fixed set of files for every ref.
type Memory struct {
	mu     sync.RWMutex
	files  map[string]string
	filter Filter
}

// NewMemory creates a provider serving files keyed by path.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string]string, len(files)), filter: DefaultFilter()}
	for p, c := range files {
		m.files[p] = c
	}
	return m
}

// Name implements Provider.
func (m *Memory) Name() string { return "memory" }

// ListFiles implements Provider. Paths are returned sorted.
func (m *Memory) ListFiles(ctx context.Context, _ string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return m.filter.Apply(paths), nil
}

// FetchFile implements Provider.
func (m *Memory) FetchFile(ctx context.Context, _, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[path]
	return content, ok, nil
}

// Put adds or replaces a file.
func (m *Memory) Put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// DemoRef is the ref shown for the bundled demo project.
const DemoRef = "demo://legacy-angular-app"

// Demo returns a provider holding a small Angular 13 application.
func Demo() *Memory {
	return NewMemory(map[string]string{
		"package.json":                    demoManifest,
		"src/app/app.module.ts":           demoModule,
		"src/app/app.component.ts":        demoComponent,
		"src/app/app.component.html":      demoTemplate,
		"src/main.ts":                     demoMain,
		"src/app/app.component.spec.ts":   "describe('AppComponent', () => {});\n",
		"node_modules/@angular/core.d.ts": "export {};\n",
	})
}

const demoManifest = `{
  "name": "legacy-angular-app",
  "version": "0.0.0",
  "scripts": {
    "ng": "ng",
    "start": "ng serve",
    "build": "ng build"
  },
  "private": true,
  "dependencies": {
    "@angular/animations": "~13.0.0",
    "@angular/common": "~13.0.0",
    "@angular/compiler": "~13.0.0",
    "@angular/core": "~13.0.0",
    "@angular/forms": "~13.0.0",
    "@angular/platform-browser": "~13.0.0",
    "@angular/platform-browser-dynamic": "~13.0.0",
    "@angular/router": "~13.0.0",
    "rxjs": "~7.4.0",
    "tslib": "^2.3.0",
    "zone.js": "~0.11.4"
  },
  "devDependencies": {
    "@angular-devkit/build-angular": "~13.0.1",
    "@angular/cli": "~13.0.1",
    "@angular/compiler-cli": "~13.0.0",
    "typescript": "~4.4.3"
  }
}
`

const demoModule = `import { NgModule } from '@angular/core';
import { BrowserModule } from '@angular/platform-browser';
import { AppComponent } from './app.component';

@NgModule({
  declarations: [
    AppComponent
  ],
  imports: [
    BrowserModule
  ],
  providers: [],
  bootstrap: [AppComponent]
})
export class AppModule { }
`

const demoComponent = `import { Component } from '@angular/core';

@Component({
  selector: 'app-root',
  templateUrl: './app.component.html',
  styleUrls: ['./app.component.css']
})
export class AppComponent {
  title = 'legacy-app';
}
`

const demoTemplate = `<h1>Welcome to {{ title }}</h1>
`

const demoMain = `import { enableProdMode } from '@angular/core';
import { platformBrowserDynamic } from '@angular/platform-browser-dynamic';

import { AppModule } from './app/app.module';

platformBrowserDynamic().bootstrapModule(AppModule)
  .catch(err => console.error(err));
`
