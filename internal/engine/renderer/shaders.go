package renderer

const terrainVertexShader = `#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;

uniform mat4 uViewProj;

out vec3 vPosition;
out vec3 vNormal;

void main() {
    vPosition = aPosition;
    vNormal = aNormal;
    gl_Position = uViewProj * vec4(aPosition, 1.0);
}
`

// Colour bands by height above the mean radius, in amplitudes.
const terrainFragmentShader = `#version 410 core

in vec3 vPosition;
in vec3 vNormal;

uniform vec3 uEye;
uniform vec3 uSunDir;
uniform float uRadius;
uniform float uAmplitude;

out vec4 FragColor;

vec3 band(float h) {
    vec3 deep  = vec3(0.05, 0.12, 0.35);
    vec3 shore = vec3(0.76, 0.70, 0.50);
    vec3 grass = vec3(0.22, 0.45, 0.16);
    vec3 rock  = vec3(0.42, 0.38, 0.34);
    vec3 snow  = vec3(0.95, 0.95, 0.97);
    if (h < -0.05) return mix(deep, shore, smoothstep(-1.0, -0.05, h));
    if (h < 0.05)  return shore;
    if (h < 0.45)  return mix(grass, rock, smoothstep(0.05, 0.45, h));
    return mix(rock, snow, smoothstep(0.45, 0.75, h));
}

void main() {
    vec3 n = normalize(vNormal);
    float h = (length(vPosition) - uRadius) / max(uAmplitude, 1e-6);

    float diffuse = max(dot(n, uSunDir), 0.0);
    float ambient = 0.15;

    float dist = length(uEye - vPosition);
    float haze = 1.0 - exp(-dist / (uRadius * 4.0));

    vec3 colour = band(h) * (ambient + diffuse);
    colour = mix(colour, vec3(0.45, 0.55, 0.75), haze * 0.5);
    FragColor = vec4(colour, 1.0);
}
`
