// Package jsassets holds the static JavaScript snippets shared across
// packages, keeping injected script bodies as named constants rather than
// scattering string literals through the call sites that use them.
package jsassets

// ShadowPierceWalker recursively collects every element matching a CSS
// selector, descending through open shadow roots as it goes. Bound via
// Runtime.callFunctionOn with `this` set to the starting node (or left
// unbound to start from document).
const ShadowPierceWalker = `function shadowPierceWalker(selector) {
	const results = [];
	const seen = new Set();
	function walk(root) {
		if (!root || seen.has(root)) {
			return;
		}
		seen.add(root);
		const matches = root.querySelectorAll(selector);
		for (const el of matches) {
			results.push(el);
		}
		const all = root.querySelectorAll('*');
		for (const el of all) {
			if (el.shadowRoot) {
				walk(el.shadowRoot);
			}
		}
	}
	walk(this || document);
	return results;
}`

// EvaluateXPathSnapshot runs an XPath expression against the document (or a
// bound context node) and returns an array of matched elements.
const EvaluateXPathSnapshot = `function evaluateXPathSnapshot(expr) {
	const root = this || document;
	const doc = root.ownerDocument || root;
	const result = doc.evaluate(expr, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < result.snapshotLength; i++) {
		out.push(result.snapshotItem(i));
	}
	return out;
}`

// StealthPrelude overrides the small set of navigator/window properties
// real automation frameworks probe for, using Object.defineProperty so the
// descriptors read back as native getters instead of plain data
// properties. The profile arrives as the function's single argument:
// stealth.Patcher JSON-encodes it and appends it to the call expression, so
// no profile value is spliced into the function body.
const StealthPrelude = `function applyStealthProfile(profile) {
	const define = (obj, prop, value) => {
		try {
			Object.defineProperty(obj, prop, {
				get: () => value,
				configurable: true,
			});
		} catch (e) {
			// some properties are non-configurable in certain contexts; skip rather than throw
		}
	};

	if (profile.webdriver !== undefined) {
		define(Navigator.prototype, 'webdriver', profile.webdriver);
	}
	if (profile.platform) {
		define(Navigator.prototype, 'platform', profile.platform);
	}
	if (profile.vendor !== undefined) {
		define(Navigator.prototype, 'vendor', profile.vendor);
	}
	if (profile.languages) {
		define(Navigator.prototype, 'languages', Object.freeze(profile.languages));
	}
	if (profile.hardwareConcurrency) {
		define(Navigator.prototype, 'hardwareConcurrency', profile.hardwareConcurrency);
	}
	if (profile.deviceMemory) {
		define(Navigator.prototype, 'deviceMemory', profile.deviceMemory);
	}
	if (profile.plugins) {
		const fakePlugins = profile.plugins.map((p) => ({
			name: p.name,
			filename: p.filename,
			description: p.description,
		}));
		define(Navigator.prototype, 'plugins', fakePlugins);
	}

	if (window.chrome === undefined) {
		window.chrome = { runtime: {} };
	}

	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
	}

	// Seeded PRNG (mulberry32) so canvas/audio noise is deterministic per
	// profile.seed rather than different on every read, which would itself
	// be a tell.
	function mulberry32(seed) {
		let a = seed >>> 0;
		return function () {
			a |= 0; a = (a + 0x6D2B79F5) | 0;
			let t = Math.imul(a ^ (a >>> 15), 1 | a);
			t = (t + Math.imul(t ^ (t >>> 7), 61 | t)) ^ t;
			return ((t ^ (t >>> 14)) >>> 0) / 4294967296;
		};
	}
	const seed = profile.fingerprintSeed || 1;
	const rand = mulberry32(seed);

	if (profile.webglVendor || profile.webglRenderer) {
		const patchContext = (proto, names) => {
			for (const name of names) {
				const orig = proto.getParameter;
				if (!orig || proto.__stealthPatched) continue;
				proto.getParameter = function (parameter) {
					const UNMASKED_VENDOR_WEBGL = 0x9245;
					const UNMASKED_RENDERER_WEBGL = 0x9246;
					if (profile.webglVendor && parameter === UNMASKED_VENDOR_WEBGL) {
						return profile.webglVendor;
					}
					if (profile.webglRenderer && parameter === UNMASKED_RENDERER_WEBGL) {
						return profile.webglRenderer;
					}
					return orig.apply(this, arguments);
				};
				proto.__stealthPatched = true;
			}
		};
		if (window.WebGLRenderingContext) {
			patchContext(WebGLRenderingContext.prototype, ['getParameter']);
		}
		if (window.WebGL2RenderingContext) {
			patchContext(WebGL2RenderingContext.prototype, ['getParameter']);
		}
	}

	if (profile.canvasNoise && window.HTMLCanvasElement && !CanvasRenderingContext2D.prototype.__stealthPatched) {
		CanvasRenderingContext2D.prototype.__stealthPatched = true;
		const addNoise = (imageData) => {
			const data = imageData.data;
			for (let i = 0; i < data.length; i += 4) {
				const delta = Math.floor(rand() * 3) - 1;
				data[i] = Math.min(255, Math.max(0, data[i] + delta));
			}
			return imageData;
		};
		const origGetImageData = CanvasRenderingContext2D.prototype.getImageData;
		CanvasRenderingContext2D.prototype.getImageData = function (...args) {
			const imageData = origGetImageData.apply(this, args);
			return addNoise(imageData);
		};
		const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
		HTMLCanvasElement.prototype.toDataURL = function (...args) {
			const ctx = this.getContext('2d');
			if (ctx) {
				const imageData = origGetImageData.call(ctx, 0, 0, this.width, this.height);
				addNoise(imageData);
				ctx.putImageData(imageData, 0, 0);
			}
			return origToDataURL.apply(this, args);
		};
	}

	if (profile.audioNoise && window.AudioBuffer && !AudioBuffer.prototype.__stealthPatched) {
		AudioBuffer.prototype.__stealthPatched = true;
		const origGetChannelData = AudioBuffer.prototype.getChannelData;
		AudioBuffer.prototype.getChannelData = function (channel) {
			const data = origGetChannelData.call(this, channel);
			for (let i = 0; i < data.length; i += 100) {
				data[i] = data[i] + (rand() * 1e-7 - 0.5e-7);
			}
			return data;
		};
	}

	if ((profile.timezone || profile.locale) && window.Intl && Intl.DateTimeFormat && !Intl.DateTimeFormat.prototype.__stealthPatched) {
		Intl.DateTimeFormat.prototype.__stealthPatched = true;
		const origResolvedOptions = Intl.DateTimeFormat.prototype.resolvedOptions;
		Intl.DateTimeFormat.prototype.resolvedOptions = function () {
			const opts = origResolvedOptions.call(this);
			if (profile.timezone) {
				opts.timeZone = profile.timezone;
			}
			if (profile.locale) {
				opts.locale = profile.locale;
			}
			return opts;
		};
	}

	if (profile.uaBrands && navigator.userAgentData) {
		define(Object.getPrototypeOf(navigator.userAgentData), 'brands', profile.uaBrands);
		if (profile.uaPlatform) {
			define(Object.getPrototypeOf(navigator.userAgentData), 'platform', profile.uaPlatform);
		}
	}
}`
